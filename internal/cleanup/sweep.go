package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/Hara602/opsclean/internal/monitor"
	"github.com/Hara602/opsclean/pkg/action"
)

// DefaultSettle is how long Sweep waits after a create event before erasing,
// so the writer has a chance to finish.
const DefaultSettle = 200 * time.Millisecond

// Sweep watches drop directories for Window and securely erases every regular
// file created in them. New subdirectories are watched as they appear.
//
// Events are handled one at a time on a single goroutine, which keeps erasures
// of the same path serialized.
type Sweep struct {
	Dirs   []string
	Window time.Duration
	Settle time.Duration
	Eraser Eraser
	Logger *zap.Logger

	// ready, if set, is closed once the initial watches are in place.
	ready chan struct{}
}

func (s *Sweep) Name() string { return "sweep" }

func (s *Sweep) Run(ctx context.Context, pub monitor.Publisher) error {
	log := nopIfNil(s.Logger).Named(s.Name())

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		publish(ctx, pub, log, action.Errorf("Failed to start sweep watcher: %v", err))
		return err
	}
	defer watcher.Close()

	// 1. Initial scan: watch each root and every subdirectory already present.
	for _, dir := range s.Dirs {
		s.addRecursive(watcher, dir, log)
	}
	if s.ready != nil {
		close(s.ready)
	}

	settle := s.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}

	ctx, cancel := context.WithTimeout(ctx, s.Window)
	defer cancel()

	log.Info("Sweeping drop directories", zap.Strings("dirs", s.Dirs), zap.Duration("window", s.Window))

	var result error
	for {
		select {
		case <-ctx.Done():
			log.Info("Sweep window closed")
			return result

		case ev, ok := <-watcher.Events:
			if !ok {
				return result
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}

			// 2. Give the writer time to finish before touching the file.
			select {
			case <-time.After(settle):
			case <-ctx.Done():
				return result
			}

			fi, err := os.Lstat(ev.Name)
			if err != nil {
				// Already gone.
				continue
			}
			if fi.IsDir() {
				log.Debug("New directory detected", zap.String("dir", ev.Name))
				s.addRecursive(watcher, ev.Name, log)
				continue
			}
			if !fi.Mode().IsRegular() {
				continue
			}
			if err := s.Eraser.Erase(context.WithoutCancel(ctx), ev.Name); err != nil {
				result = multierror.Append(result, err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return result
			}
			log.Warn("Sweep watcher error", zap.Error(err))
			publish(ctx, pub, log, action.Errorf("Sweep watcher error: %v", err))
		}
	}
}

// addRecursive watches path and all directories below it.
func (s *Sweep) addRecursive(w *fsnotify.Watcher, path string, log *zap.Logger) {
	err := filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if err := w.Add(walkPath); err != nil {
				log.Warn("Failed to watch directory", zap.String("dir", walkPath), zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		log.Warn("Error walking path", zap.String("path", path), zap.Error(err))
	}
}
