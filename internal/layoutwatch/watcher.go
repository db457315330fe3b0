// Package layoutwatch asks the monitor to reload its sensors when the
// layout file changes on disk.
package layoutwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/oshokin/alarm-monitor/internal/bus"
	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/logger"
	"github.com/oshokin/alarm-monitor/internal/repository/layout"
)

const (
	// DefaultDebounce collapses bursts of editor writes into one reload.
	DefaultDebounce = 2 * time.Second

	workerName = "config-watcher"
)

// Watcher is the layout file watcher worker.
type Watcher struct {
	// path is the absolute layout file path.
	path string
	// inbox receives bus actions; only STOP matters here.
	inbox *bus.Inbox
	// sender receives UPDATE_CONFIG.
	sender bus.Sender
	// debounce is the quiet period before a reload is requested.
	debounce time.Duration
}

// New creates a watcher for path.
func New(path string, inbox *bus.Inbox, sender bus.Sender, debounce time.Duration) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve layout path: %w", err)
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		path:     absPath,
		inbox:    inbox,
		sender:   sender,
		debounce: debounce,
	}, nil
}

// Name implements supervisor.Worker.
func (w *Watcher) Name() string {
	return workerName
}

// Run watches the layout directory until STOP arrives or ctx is done.
// The directory is watched rather than the file so that editors replacing
// the file by rename are noticed.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, workerName)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}

	defer func() {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.ErrorKV(ctx, "Failed to close file watcher", "error", closeErr)
		}
	}()

	dir := filepath.Dir(w.path)
	if err = watcher.Add(dir); err != nil {
		return fmt.Errorf("watch layout directory %s: %w", dir, err)
	}

	logger.InfoKV(ctx, "Watching layout file", "path", w.path)

	reload := time.NewTimer(w.debounce)
	reload.Stop()

	defer reload.Stop()

	for {
		if w.stopRequested() {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-w.inbox.Ready():
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != w.path {
				continue
			}

			if event.Has(fsnotify.Remove) {
				logger.WarnKV(ctx, "Layout file removed", "path", event.Name)

				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				logger.DebugKV(ctx, "Layout file changed", "op", event.Op.String())
				reload.Reset(w.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.ErrorKV(ctx, "Layout watcher error", "error", err)
		case <-reload.C:
			w.requestReload(ctx)
		}
	}
}

func (w *Watcher) stopRequested() bool {
	for {
		action, ok := w.inbox.TryReceive()
		if !ok {
			return false
		}

		if action == domain.ActionStop {
			return true
		}
	}
}

// requestReload validates the new layout and asks every worker to reload.
// An invalid layout is still reported: the monitor rejects it and enters
// INVALID_CONFIG, which is what the user needs to see.
func (w *Watcher) requestReload(ctx context.Context) {
	l, err := layout.Load(w.path)
	if err != nil {
		logger.ErrorKV(ctx, "Changed layout is invalid", "path", w.path, "error", err)
	} else {
		logger.InfoKV(ctx, "Layout changed, requesting reload",
			"zones", len(l.Zones),
			"sensors", len(l.Sensors),
		)
	}

	w.sender.Send(domain.ActionUpdateConfig)
}
