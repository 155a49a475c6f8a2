package host

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dchest/minibundle/utils"
)

const (
	// debounce is how long the watcher waits for more changes
	// before rebuilding.
	debounce = 100 * time.Millisecond
	// maxDelay limits how long a continuous stream of changes
	// can postpone a rebuild.
	maxDelay = time.Second
)

// rebuildDelay returns how long to wait for more changes at now,
// if the first unbuilt change happened at first.
func rebuildDelay(first, now time.Time) time.Duration {
	left := maxDelay - now.Sub(first)
	if left < 0 {
		return 0
	}
	return min(debounce, left)
}

// Watcher rebuilds the project when files in it change.
type Watcher struct {
	baseDir string
	ignored []string
	logger  *slog.Logger

	started func() // called once directories are watched
}

// NewWatcher returns a watcher for the project. Output directories
// are ignored.
func NewWatcher(c *Config, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		baseDir: c.BaseDir,
		ignored: c.OutDirs(),
		logger:  logger,
	}
}

func (w *Watcher) isIgnored(name string) bool {
	if utils.IsIgnoredFile(name) {
		return true
	}
	for _, dir := range w.ignored {
		if utils.IsInDir(name, dir) {
			return true
		}
	}
	base := filepath.Base(name)
	switch base {
	case CacheFileName, ".git", "node_modules":
		return true
	}
	return false
}

// watchedDirs returns every project directory except for ignored ones.
func (w *Watcher) watchedDirs() (dirs []string, err error) {
	err = filepath.WalkDir(w.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.baseDir && w.isIgnored(path) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return
}

// Watch calls build on every change until ctx is done.
func (w *Watcher) Watch(ctx context.Context, build func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs, err := w.watchedDirs()
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}
	w.logger.Info("Watching for changes", "dirs", len(dirs))
	if w.started != nil {
		w.started()
	}

	var (
		timer <-chan time.Time
		first time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if w.isIgnored(ev.Name) {
				break
			}
			w.logger.Debug("Change", "event", ev.String())
			if ev.Has(fsnotify.Create) && utils.DirExist(ev.Name) {
				if err := watcher.Add(ev.Name); err != nil {
					w.logger.Warn("Cannot watch directory", "dir", ev.Name, "error", err)
				}
			}
			now := time.Now()
			if first.IsZero() {
				first = now
			}
			timer = time.After(rebuildDelay(first, now))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)
		case <-timer:
			timer = nil
			first = time.Time{}
			if err := build(ctx); err != nil {
				w.logger.Error("Build failed", "error", err)
			}
		}
	}
}
