package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// fileFormat is the YAML layout of a secrets file:
//
//	platforms:
//	  facebook:
//	    signing_secret: "..."
//	    verify_token: "..."
type fileFormat struct {
	Platforms map[string]Values `yaml:"platforms"`
}

// File is a [Store] backed by a local YAML file,
// which can be hot-reloaded with [File.Watch].
type File struct {
	path string

	mu      sync.RWMutex
	current map[string]Values
}

// NewFile creates a [File] store and performs the initial load.
func NewFile(path string) (*File, error) {
	f := &File{path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Values(_ context.Context, platform string) (Values, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v, ok := f.current[platform]
	if !ok {
		return Values{}, nil
	}

	// Callers must not be able to mutate the shared map.
	out := make(Values, len(v))
	for k, s := range v {
		out[k] = s
	}
	return out, nil
}

// Reload forces an immediate re-read of the file.
func (f *File) Reload() error {
	m, err := f.load()
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.current = m
	f.mu.Unlock()
	return nil
}

// Watch reloads the file whenever it changes, until the context is canceled.
// Reload errors are logged, and the previous contents remain in effect.
// This is blocking, so callers usually run it in a goroutine.
//
// The parent directory is watched rather than the file itself, so that
// atomic replacements (editors that rename a temporary file over the
// original, and Kubernetes ConfigMap symlink swaps) are also detected.
func (f *File) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("secrets file watcher: %w", err)
	}
	defer w.Close()

	path := filepath.Clean(f.path)
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("secrets file watcher add %s: %w", dir, err)
	}

	l := zerolog.Ctx(ctx).With().Str("path", f.path).Logger()
	target := resolve(path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			// A new symlink target is a change even if no event names the file.
			current := resolve(path)
			changed := current != "" && current != target
			if filepath.Clean(ev.Name) == path && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				changed = true
			}
			if !changed {
				continue
			}

			target = current
			if err := f.Reload(); err != nil {
				l.Warn().Err(err).Msg("failed to reload secrets file, keeping previous contents")
				continue
			}
			l.Info().Msg("reloaded secrets file")

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.Warn().Err(err).Msg("secrets file watcher error")

		case <-ctx.Done():
			return nil
		}
	}
}

// resolve returns the real path of the given file, or "" if it doesn't exist.
func resolve(path string) string {
	p, err := filepath.EvalSymlinks(path)
	if err != nil {
		return ""
	}
	return p
}

func (f *File) load() (map[string]Values, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read secrets file %s: %w", f.path, err)
	}

	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse secrets file %s: %w", f.path, err)
	}

	if ff.Platforms == nil {
		ff.Platforms = map[string]Values{}
	}
	return ff.Platforms, nil
}
