package cleanup

import (
	"context"
	"os"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/Hara602/opsclean/internal/monitor"
	"github.com/Hara602/opsclean/pkg/action"
)

// DefaultMarker is dropped when LogScrub.Markers is empty.
const DefaultMarker = "suspicious_activity"

// LogScrub rewrites log files without the lines that contain any marker. The
// file keeps its mode; its modification time is set to now unless
// PreserveModTime is set, in which case the previous one is restored.
type LogScrub struct {
	Files           []string
	Markers         []string
	PreserveModTime bool
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *zap.Logger
}

func (s *LogScrub) Name() string { return "log-scrub" }

func (s *LogScrub) Run(ctx context.Context, pub monitor.Publisher) error {
	log := nopIfNil(s.Logger).Named(s.Name())

	markers := s.Markers
	if len(markers) == 0 {
		markers = []string{DefaultMarker}
	}

	now := s.Now
	if now == nil {
		now = time.Now
	}

	var result error
	for _, f := range s.Files {
		log.Info("Manipulating log file", zap.String("file", f))
		removed, err := s.scrubFile(f, markers, now)
		if err != nil {
			log.Error("Log rewrite failed", zap.String("file", f), zap.Error(err))
			publish(ctx, pub, log, action.Errorf("Failed to manipulate log file %s: %v", f, err))
			result = multierror.Append(result, err)
			continue
		}
		log.Info("Log file manipulated", zap.String("file", f), zap.Int("lines_removed", removed))
		publish(ctx, pub, log, action.LogManipulated(f))
	}
	return result
}

// scrubFile returns the number of lines dropped. The file is rewritten even
// when nothing matched.
func (s *LogScrub) scrubFile(path string, markers []string, now func() time.Time) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, cerr.Wrap(err, "failed to read log file")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, cerr.Wrap(err, "failed to read log file")
	}

	filtered, removed := filterLines(string(content), markers)
	if err := os.WriteFile(path, []byte(filtered), info.Mode().Perm()); err != nil {
		return 0, cerr.Wrap(err, "failed to write filtered content to log file")
	}

	mtime := now()
	if s.PreserveModTime {
		mtime = info.ModTime()
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		return removed, cerr.Wrap(err, "failed to set file modified time")
	}
	return removed, nil
}

func filterLines(content string, markers []string) (string, int) {
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	removed := 0
	for _, line := range lines {
		if containsAny(line, markers) {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), removed
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
