package cleanup

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/Hara602/opsclean/internal/monitor"
	"github.com/Hara602/opsclean/pkg/action"
)

// TempFiles removes whole temporary directories. With an Eraser set, every
// regular file inside is securely erased before the tree is removed.
type TempFiles struct {
	Dirs   []string
	Eraser Eraser
	Logger *zap.Logger
}

func (s *TempFiles) Name() string { return "temp-files" }

func (s *TempFiles) Run(ctx context.Context, pub monitor.Publisher) error {
	log := nopIfNil(s.Logger).Named(s.Name())
	log.Info("Removing temporary files...", zap.Strings("dirs", s.Dirs))

	var result error
	for _, dir := range s.Dirs {
		if err := s.removeDir(ctx, dir, log); err != nil {
			log.Error("Error removing directory", zap.String("dir", dir), zap.Error(err))
			publish(ctx, pub, log, action.Errorf("Failed to remove %s: %v", dir, err))
			result = multierror.Append(result, err)
			continue
		}
		log.Info("Removed directory", zap.String("dir", dir))
		publish(ctx, pub, log, action.FileDeleted(dir))
	}
	return result
}

func (s *TempFiles) removeDir(ctx context.Context, dir string, log *zap.Logger) error {
	info, err := os.Stat(dir)
	if err != nil {
		return cerr.Wrapf(err, "stat %s", dir)
	}
	if !info.IsDir() {
		return cerr.Newf("%s is not a directory", dir)
	}

	if s.Eraser != nil {
		if err := s.eraseTree(ctx, dir, log); err != nil {
			return err
		}
	}
	return cerr.Wrapf(os.RemoveAll(dir), "remove %s", dir)
}

// eraseTree erases every regular file under dir. The eraser publishes its
// own outcome per file, so a failure here only stops the directory removal.
func (s *TempFiles) eraseTree(ctx context.Context, dir string, log *zap.Logger) error {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return cerr.Wrapf(err, "walk %s", dir)
	}

	var result error
	for _, f := range files {
		if err := s.Eraser.Erase(ctx, f); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if result != nil {
		log.Warn("Some files could not be erased; leaving directory in place", zap.String("dir", dir))
	}
	return result
}
