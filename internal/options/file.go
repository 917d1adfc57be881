package options

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// FileStore keeps options in a flat YAML map on disk. External edits to the
// file are picked up through fsnotify, so an operator can change fallback
// settings without restarting the server.
type FileStore struct {
	path string
	log  zerolog.Logger

	mu     sync.RWMutex
	values map[string]string

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewFileStore loads path (a missing file is an empty store) and starts watching it.
func NewFileStore(path string, log zerolog.Logger) (*FileStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve options file: %w", err)
	}

	f := &FileStore{
		path:   abs,
		log:    log,
		values: make(map[string]string),
		done:   make(chan struct{}),
	}
	if err := f.reload(); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors and Set replace the file via rename.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	f.watcher = w
	go f.watch()

	return f, nil
}

func (f *FileStore) watch() {
	defer close(f.done)
	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			if err := f.reload(); err != nil {
				f.log.Warn().Err(err).Str("path", f.path).Msg("options reload failed, keeping previous values")
				continue
			}
			f.log.Info().Str("path", f.path).Msg("options reloaded")
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.log.Warn().Err(err).Msg("options watcher error")
		}
	}
}

func (f *FileStore) reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read options file: %w", err)
	}

	raw := map[string]string{}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse options file: %w", err)
		}
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if !IsKnownKey(k) {
			f.log.Warn().Str("key", k).Msg("ignoring unknown option key")
			continue
		}
		if v != "" {
			values[k] = v
		}
	}

	f.mu.Lock()
	f.values = values
	f.mu.Unlock()
	return nil
}

// Get returns the value for key, or "" when unset.
func (f *FileStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.values[key], nil
}

// All returns a copy of every stored option.
func (f *FileStore) All(ctx context.Context) (map[string]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return maps.Clone(f.values), nil
}

// Set merges values into the store and rewrites the file atomically.
func (f *FileStore) Set(ctx context.Context, values map[string]string) error {
	if err := checkKeys(values); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	next := maps.Clone(f.values)
	for k, v := range values {
		if v == "" {
			delete(next, k)
			continue
		}
		next[k] = v
	}

	data, err := yaml.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write options file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace options file: %w", err)
	}

	f.values = next
	return nil
}

// Close stops the file watcher.
func (f *FileStore) Close() error {
	var err error
	f.once.Do(func() {
		err = f.watcher.Close()
		<-f.done
	})
	return err
}
