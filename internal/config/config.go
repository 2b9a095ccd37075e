// SPDX-License-Identifier: AGPL-3.0-only
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var AppVersion = "dev"

const (
	defaultListenAddr      = ":8080"
	defaultRedirectURL     = "http://localhost:8080/redirect"
	defaultScope           = "wall groups photos"
	defaultHTTPTimeout     = 60 * time.Second
	defaultReportRetention = 30 * 24 * time.Hour
)

type AppConfig struct {
	BackendURL      string
	ListenAddr      string
	SessionSecret   []byte
	VKAppID         string
	VKRedirectURL   string
	VKScope         []string
	HTTPTimeout     time.Duration
	ReportRetention time.Duration

	DB DBConfig

	// ConfigErr is shown on the error page instead of crashing the server.
	ConfigErr error
	DBInitErr error
}

type DBConfig struct {
	Name     string
	User     string
	Password string
	Host     string
}

// Enabled reports whether enough POSTGRES_* variables are set to use the
// database-backed report store.
func (d DBConfig) Enabled() bool {
	return d.Name != "" && d.User != "" && d.Password != ""
}

func (d DBConfig) URL() string {
	host := d.Host
	if host == "" {
		host = "db:5432"
	}
	return fmt.Sprintf("postgres://%v:%v@%v/%v?sslmode=disable", d.User, d.Password, host, d.Name)
}

// LoadConfig reads the environment. Problems are collected into ConfigErr so
// the dashboard can still start and report them.
func LoadConfig() *AppConfig {
	return loadFrom(os.Getenv)
}

func loadFrom(getenv func(string) string) *AppConfig {
	cfg := &AppConfig{
		BackendURL:      strings.TrimRight(getenv("BACKEND_URL"), "/"),
		ListenAddr:      valueOr(getenv("LISTEN_ADDR"), defaultListenAddr),
		SessionSecret:   []byte(getenv("SESSION_SECRET")),
		VKAppID:         getenv("VK_APP_ID"),
		VKRedirectURL:   valueOr(getenv("VK_REDIRECT_URL"), defaultRedirectURL),
		VKScope:         strings.Fields(valueOr(getenv("VK_SCOPE"), defaultScope)),
		HTTPTimeout:     defaultHTTPTimeout,
		ReportRetention: defaultReportRetention,
		DB: DBConfig{
			Name:     getenv("POSTGRES_DB"),
			User:     getenv("POSTGRES_USER"),
			Password: getenv("POSTGRES_PASSWORD"),
			Host:     getenv("POSTGRES_HOST"),
		},
	}

	var errs []error

	if cfg.BackendURL == "" {
		errs = append(errs, errors.New("BACKEND_URL is required"))
	}
	if cfg.VKAppID == "" {
		errs = append(errs, errors.New("VK_APP_ID is required"))
	} else if _, err := strconv.ParseInt(cfg.VKAppID, 10, 64); err != nil {
		errs = append(errs, fmt.Errorf("VK_APP_ID must be numeric: %w", err))
	}
	if len(cfg.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes"))
	}

	if v := getenv("HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("HTTP_TIMEOUT: %w", err))
		} else {
			cfg.HTTPTimeout = d
		}
	}
	if v := getenv("REPORT_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("REPORT_RETENTION: %w", err))
		} else {
			cfg.ReportRetention = d
		}
	}

	cfg.ConfigErr = errors.Join(errs...)
	return cfg
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
