// SPDX-License-Identifier: AGPL-3.0-only
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fluffyriot/vkresender/internal/logging"
	"github.com/fluffyriot/vkresender/internal/selection"
	"github.com/fluffyriot/vkresender/internal/vkapi"
)

const (
	PreviewSize = 10
	MaxFileSize = 1 << 20
)

var (
	ErrEmpty    = errors.New("import file has no group ids")
	ErrTooLarge = errors.New("import file is too large")
)

var handlePrefixes = []string{
	"https://vk.com/",
	"http://vk.com/",
	"https://m.vk.com/",
	"vk.com/",
}

// ParseLines splits text into one group handle per line. Blank lines are
// dropped and profile links are cut down to the bare handle.
func ParseLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		for _, p := range handlePrefixes {
			if strings.HasPrefix(strings.ToLower(line), p) {
				line = line[len(p):]
				break
			}
		}
		line = strings.Trim(line, "/ \t")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Read parses an uploaded import file.
func Read(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, ErrTooLarge
	}
	return ParseLines(string(data)), nil
}

type Preview struct {
	Shown     []string
	Remaining int
}

func NewPreview(lines []string) Preview {
	if len(lines) <= PreviewSize {
		return Preview{Shown: lines}
	}
	return Preview{Shown: lines[:PreviewSize], Remaining: len(lines) - PreviewSize}
}

type Backend interface {
	AddGroups(ctx context.Context, store vkapi.TokenStore, handles []string) error
	GetGroups(ctx context.Context, store vkapi.TokenStore) ([]vkapi.Wall, error)
}

type Store interface {
	vkapi.TokenStore
	selection.Store
}

type Result struct {
	Submitted []string
	Walls     []vkapi.Wall
}

type Importer struct {
	backend Backend
	log     logging.Logger
}

func New(backend Backend, log logging.Logger) *Importer {
	return &Importer{backend: backend, log: log.With("component", "importer")}
}

// Import submits all handles as one batch, then refreshes the wall list and
// reconciles the stored selection against it. Nothing in store changes when
// either call fails.
func (i *Importer) Import(ctx context.Context, store Store, handles []string) (*Result, error) {
	if len(handles) == 0 {
		return nil, ErrEmpty
	}

	if err := i.backend.AddGroups(ctx, store, handles); err != nil {
		i.log.Warn(ctx, "group import failed", "count", len(handles), "error", err)
		return nil, fmt.Errorf("add groups: %w", err)
	}

	walls, err := i.backend.GetGroups(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("refresh groups: %w", err)
	}

	sel := selection.Load(store, walls)
	sel.Save(store)

	i.log.Info(ctx, "groups imported", "submitted", len(handles), "known", len(walls))
	return &Result{Submitted: handles, Walls: walls}, nil
}
