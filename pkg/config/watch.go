package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/pressroom/pkg/observability"
)

// Watcher reloads the configuration file when it changes on disk.
// Only settings that are safe to change at runtime should be applied by the callback;
// listeners and stores keep the values they started with.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *observability.Logger
	done    chan struct{}
	once    sync.Once
}

// NewWatcher watches the directory holding path, so editors that replace the file
// through a rename are still seen
func NewWatcher(path string, logger *observability.Logger) (*Watcher, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:    abs,
		watcher: fw,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Start delivers every successfully reloaded configuration to onChange.
// A file that fails to load or validate is logged and skipped.
func (w *Watcher) Start(onChange func(*Config)) {
	go func() {
		defer close(w.done)
		defer observability.RecoverPanic(w.logger, "config watcher")
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}

				cfg, err := LoadConfig(w.path)
				if err != nil {
					w.logger.WithError(err).Warn("Ignoring invalid configuration change")
					continue
				}
				onChange(cfg)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.WithError(err).Warn("Config watcher error")
			}
		}
	}()
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.watcher.Close()
	})
	return err
}
