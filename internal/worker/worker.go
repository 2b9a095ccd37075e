// SPDX-License-Identifier: AGPL-3.0-only
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/fluffyriot/vkresender/internal/logging"
	"github.com/fluffyriot/vkresender/internal/reports"
)

// Worker periodically deletes dispatch reports older than Retention.
type Worker struct {
	Reports   reports.Store
	Retention time.Duration
	Log       logging.Logger
	Ticker    *time.Ticker
	StopChan  chan bool
	mu        sync.Mutex
	running   bool
	active    bool
	now       func() time.Time
}

func NewWorker(store reports.Store, retention time.Duration, log logging.Logger) *Worker {
	return &Worker{
		Reports:   store,
		Retention: retention,
		Log:       log.With("component", "worker"),
		StopChan:  make(chan bool),
		now:       time.Now,
	}
}

func (w *Worker) Start(interval time.Duration) {
	ctx := context.Background()

	w.mu.Lock()
	if w.active {
		w.mu.Unlock()
		w.Log.Warn(ctx, "scheduler already active, use Restart to change interval")
		return
	}
	w.active = true
	w.mu.Unlock()

	w.Ticker = time.NewTicker(interval)
	go func() {
		defer func() {
			w.mu.Lock()
			w.active = false
			w.mu.Unlock()
		}()
		for {
			select {
			case <-w.Ticker.C:
				w.PruneAll()
			case <-w.StopChan:
				w.Ticker.Stop()
				return
			}
		}
	}()
	w.Log.Info(ctx, "background worker started", "interval", interval, "retention", w.Retention)
}

func (w *Worker) Stop() {
	ctx := context.Background()

	w.mu.Lock()
	if !w.active {
		w.mu.Unlock()
		w.Log.Warn(ctx, "scheduler not active")
		return
	}
	w.mu.Unlock()

	w.StopChan <- true
	w.Log.Info(ctx, "background worker stopped")
}

func (w *Worker) Restart(interval time.Duration) {
	w.mu.Lock()
	isActive := w.active
	w.mu.Unlock()

	if isActive {
		w.Stop()
		time.Sleep(100 * time.Millisecond)
	}
	w.Start(interval)
}

func (w *Worker) IsActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// PruneAll runs one pruning pass unless one is already in progress. It
// returns the number of deleted reports.
func (w *Worker) PruneAll() int64 {
	ctx := context.Background()

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		w.Log.Info(ctx, "prune already in progress, skipping")
		return 0
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	defer func() {
		if r := recover(); r != nil {
			w.Log.Error(ctx, "panic in report pruning", "panic", r)
		}
	}()

	cutoff := w.now().Add(-w.Retention)
	n, err := w.Reports.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		w.Log.Error(ctx, "report pruning failed", "error", err)
		return 0
	}
	if n > 0 {
		w.Log.Info(ctx, "old reports deleted", "count", n, "cutoff", cutoff)
	}
	return n
}
