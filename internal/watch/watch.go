// Package watch re-runs a callback when unit scripts below a directory change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"refbind/internal/trace"
)

// DefaultDebounce groups bursts of editor writes into one batch.
const DefaultDebounce = 150 * time.Millisecond

// Watcher follows a directory tree. fsnotify is not recursive, so every
// subdirectory is added on start and whenever one is created.
type Watcher struct {
	w        *fsnotify.Watcher
	root     string
	ext      string
	debounce time.Duration
}

// New watches root and its subdirectories for files ending in ext.
func New(root, ext string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{w: fw, root: root, ext: ext, debounce: debounce}
	if err := w.addTree(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.w.Add(path)
	})
}

func (w *Watcher) Close() error { return w.w.Close() }

// relevant reports whether ev touches a unit file.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !strings.HasSuffix(ev.Name, w.ext) {
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

// Run calls fn with the sorted, de-duplicated paths changed in each
// debounced burst, until ctx is done. An error from fn stops Run.
func (w *Watcher) Run(ctx context.Context, fn func(ctx context.Context, changed []string) error) error {
	tracer := trace.FromContext(ctx)
	pending := map[string]struct{}{}
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				// новый каталог: начинаем следить и за ним
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err == nil {
						trace.Point(tracer, trace.ScopeDriver, "watch:add", ev.Name, 0)
					}
				}
			}
			if !w.relevant(ev) {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			trace.Point(tracer, trace.ScopeDriver, "watch:error", err.Error(), 0)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			if err := fn(ctx, changed); err != nil {
				return err
			}
		}
	}
}
