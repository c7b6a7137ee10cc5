package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/habitix/habitix/llm"
)

// defaultDebounce is how long to wait for more writes before reloading.
const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the config file on change and applies LLM routing
// updates to a live registry. Server and NATS settings are not
// hot-reloaded; those need a restart.
type Watcher struct {
	path     string
	registry *llm.Registry
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	// OnReload, when set, is called with each successfully applied
	// config.
	OnReload func(*Config)
}

// NewWatcher creates a config watcher for the given file and registry.
func NewWatcher(path string, registry *llm.Registry, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		path:     path,
		registry: registry,
		debounce: defaultDebounce,
		logger:   logger,
		watcher:  fsw,
	}, nil
}

// Start begins watching the config file's directory. Watching the
// directory rather than the file survives editors that replace the
// file on save.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Config watcher started", "path", w.path)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// processEvents handles fsnotify events with debouncing.
func (w *Watcher) processEvents(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error", "error", err)

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()
		}
	}
}

// reload reads the file and applies it. A broken config is logged and
// skipped; the previous routing stays in effect.
func (w *Watcher) reload() {
	cfg, err := LoadFromFile(w.path)
	if err != nil {
		w.logger.Warn("Config reload failed", "path", w.path, "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Warn("Reloaded config is invalid, keeping previous",
			"path", w.path,
			"error", err)
		return
	}

	if err := cfg.applyToRegistry(w.registry); err != nil {
		w.logger.Warn("Failed to apply reloaded config", "error", err)
		return
	}

	w.logger.Info("Config reloaded",
		"endpoints", len(cfg.LLM.Endpoints),
		"capabilities", len(cfg.LLM.Capabilities))

	if w.OnReload != nil {
		w.OnReload(cfg)
	}
}
