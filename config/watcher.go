// Package config provides configuration types and utilities for the agent
// orchestration platform. This file implements hot-reload: watching the
// backing YAML file for changes and re-parsing it on write.
package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Config from disk whenever its backing file changes and
// hands the new value to every registered callback. Callbacks run
// synchronously on the watcher's own goroutine; a slow callback delays
// delivery to the rest.
type Watcher struct {
	path      string
	watcher   *fsnotify.Watcher
	mu        sync.RWMutex
	callbacks []func(*Config, error)
	done      chan struct{}
}

// NewWatcher starts watching filePath for changes. The caller owns the
// returned Watcher's lifetime and must call Close when done.
func NewWatcher(filePath string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filePath); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filePath, err)
	}

	w := &Watcher{
		path:    filePath,
		watcher: fsw,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// OnReload registers a callback invoked after every successful or failed
// reload attempt; err is non-nil when the new file failed to parse or
// validate, in which case the previous in-memory Config should be kept.
func (w *Watcher) OnReload(cb func(*Config, error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err == nil {
		cfg.SetDefaults()
		if verr := cfg.Validate(); verr != nil {
			err = verr
			cfg = nil
		}
	}

	w.mu.RLock()
	callbacks := append([]func(*Config, error){}, w.callbacks...)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(cfg, err)
	}
}

// Close stops the watcher and releases its underlying file descriptor.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
