// SPDX-License-Identifier: AGPL-3.0-only
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fluffyriot/vkresender/internal/api/handlers"
	"github.com/fluffyriot/vkresender/internal/authflow"
	"github.com/fluffyriot/vkresender/internal/cli"
	"github.com/fluffyriot/vkresender/internal/config"
	"github.com/fluffyriot/vkresender/internal/database"
	"github.com/fluffyriot/vkresender/internal/dispatch"
	"github.com/fluffyriot/vkresender/internal/logging"
	"github.com/fluffyriot/vkresender/internal/reports"
	"github.com/fluffyriot/vkresender/internal/session"
	"github.com/fluffyriot/vkresender/internal/vkapi"
	"github.com/fluffyriot/vkresender/internal/web"
	"github.com/fluffyriot/vkresender/internal/worker"
	"github.com/gin-gonic/gin"
)

const pruneInterval = time.Hour

func main() {
	login := flag.Bool("login", false, "Sign in through VK ID and print the access token")
	broadcast := flag.Bool("broadcast", false, "Send a message file to walls without the dashboard")
	messageFile := flag.String("message-file", "", "Message text for --broadcast")
	groups := flag.String("groups", "", "Comma separated wall ids for --broadcast")
	imageList := flag.String("images", "", "Comma separated image files for --broadcast")
	out := flag.String("out", "result.txt", "Report file for --broadcast")
	flag.Parse()

	logger := logging.New(os.Stderr, slog.LevelInfo)
	cfg := config.LoadConfig()
	api := vkapi.NewClient(cfg.BackendURL, cfg.HTTPTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case *login:
		if cfg.BackendURL == "" || cfg.VKAppID == "" {
			log.Fatal("BACKEND_URL and VK_APP_ID are required")
		}
		widget, err := authflow.NewLoopbackWidget(cfg.VKRedirectURL, os.Stdout)
		if err != nil {
			log.Fatalf("Failed to prepare login: %v", err)
		}
		hs := authflow.New(api, authflow.NewProvider(cfg.VKAppID, cfg.VKRedirectURL, cfg.VKScope), logger)
		if err := cli.HandleLogin(ctx, hs, widget, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return

	case *broadcast:
		if cfg.BackendURL == "" {
			log.Fatal("BACKEND_URL is required")
		}
		token, err := cli.ResolveToken(os.Getenv, os.Stdout)
		if err != nil {
			log.Fatal(err)
		}
		d := dispatch.New(api, nil, logger)
		err = cli.HandleBroadcast(ctx, d, token, cli.BroadcastOptions{
			MessageFile: *messageFile,
			Groups:      *groups,
			Images:      *imageList,
			Out:         *out,
		}, os.Stdout)
		if err != nil {
			log.Fatal(err)
		}
		return
	}

	var db *sql.DB
	var store reports.Store = reports.NewMemory()
	if cfg.DB.Enabled() {
		conn, version, err := database.Open(cfg.DB.URL())
		if err != nil {
			cfg.DBInitErr = err
			logger.Error(ctx, "database unavailable, keeping reports in memory", "error", err)
		} else {
			logger.Info(ctx, "database ready", "schema_version", version)
			db = conn
			store = reports.NewPostgres(conn)
			defer db.Close()
		}
	}

	if cfg.ConfigErr != nil {
		logger.Error(ctx, "configuration incomplete", "error", cfg.ConfigErr)
	}

	w := worker.NewWorker(store, cfg.ReportRetention, logger)
	w.Start(pruneInterval)
	defer w.Stop()

	h := handlers.NewHandler(db, api, store, cfg, w, logger)

	r := gin.Default()
	if err := web.Load(r); err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}
	h.RegisterRoutes(r, session.NewStore(cfg.SessionSecret, strings.HasPrefix(cfg.VKRedirectURL, "https://")))

	logger.Info(ctx, "starting dashboard", "addr", cfg.ListenAddr, "version", config.AppVersion)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalln(err)
	}
}
