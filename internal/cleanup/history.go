package cleanup

import (
	"context"
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/Hara602/opsclean/internal/execute"
	"github.com/Hara602/opsclean/internal/monitor"
	"github.com/Hara602/opsclean/pkg/action"
)

// HistoryCommand clears the in-memory list and writes the empty list back to HISTFILE.
const HistoryCommand = "history -c && history -w"

// BashHistory clears shell history through the shell itself and truncates any
// extra history files (zsh, fish) listed in Files.
type BashHistory struct {
	Runner execute.Runner
	// Shell defaults to "bash".
	Shell  string
	Files  []string
	Logger *zap.Logger
}

func (s *BashHistory) Name() string { return "bash-history" }

func (s *BashHistory) Run(ctx context.Context, pub monitor.Publisher) error {
	log := nopIfNil(s.Logger).Named(s.Name())
	log.Info("Clearing bash history...")

	shell := s.Shell
	if shell == "" {
		shell = "bash"
	}

	var result error
	res, err := s.Runner.Run(ctx, shell, "-c", HistoryCommand)
	switch {
	case err != nil:
		err = cerr.Wrap(err, "failed to execute history command")
		publish(ctx, pub, log, action.Errorf("Failed to clear bash history: %v", err))
		result = multierror.Append(result, err)
	case !res.Success:
		msg := strings.TrimSpace(res.Stderr)
		log.Error("Error clearing bash history", zap.String("stderr", msg))
		publish(ctx, pub, log, action.Errorf("Failed to clear bash history: %s", msg))
		result = multierror.Append(result, cerr.Newf("history command exited %d: %s", res.ExitCode, msg))
	}

	for _, f := range s.Files {
		if err := truncate(f); err != nil {
			publish(ctx, pub, log, action.Errorf("Failed to truncate history file %s: %v", f, err))
			result = multierror.Append(result, err)
		}
	}

	if result != nil {
		return result
	}
	log.Info("Bash history cleared.")
	publish(ctx, pub, log, action.BashHistoryCleared())
	return nil
}

// truncate empties an existing file and keeps its mode. Missing files are fine.
func truncate(path string) error {
	err := os.Truncate(path, 0)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return cerr.Wrapf(err, "truncate %s", path)
}
