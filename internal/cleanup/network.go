package cleanup

import (
	"context"
	"os/exec"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/Hara602/opsclean/internal/execute"
	"github.com/Hara602/opsclean/internal/monitor"
	"github.com/Hara602/opsclean/pkg/action"
)

// TraceCommand flushes one kind of network trace. Variants are alternative
// argv lists tried in order; the next one is used only when the previous
// program is not installed.
type TraceCommand struct {
	Description string
	Variants    [][]string
}

// DefaultTraceCommands flush the firewall rules and the resolver cache.
func DefaultTraceCommands() []TraceCommand {
	return []TraceCommand{
		{
			Description: "iptables rules flushed",
			Variants:    [][]string{{"iptables", "-F"}},
		},
		{
			Description: "DNS cache flushed",
			Variants: [][]string{
				{"resolvectl", "flush-caches"},
				{"systemd-resolve", "--flush-caches"},
			},
		},
	}
}

// NetworkTraces runs every trace command and reports each one separately.
type NetworkTraces struct {
	Runner   execute.Runner
	Commands []TraceCommand
	Logger   *zap.Logger
}

func (s *NetworkTraces) Name() string { return "network-traces" }

func (s *NetworkTraces) Run(ctx context.Context, pub monitor.Publisher) error {
	log := nopIfNil(s.Logger).Named(s.Name())
	log.Info("Removing network traces...")

	commands := s.Commands
	if commands == nil {
		commands = DefaultTraceCommands()
	}

	var result error
	for _, tc := range commands {
		if err := s.runOne(ctx, tc); err != nil {
			log.Error("Network trace flush failed", zap.String("trace", tc.Description), zap.Error(err))
			publish(ctx, pub, log, action.Errorf("Failed to flush (%s): %v", tc.Description, err))
			result = multierror.Append(result, err)
			continue
		}
		log.Info("Network trace removed", zap.String("trace", tc.Description))
		publish(ctx, pub, log, action.NetworkTraceRemoved(tc.Description))
	}
	return result
}

func (s *NetworkTraces) runOne(ctx context.Context, tc TraceCommand) error {
	var lastErr error
	for _, argv := range tc.Variants {
		if len(argv) == 0 {
			continue
		}
		res, err := s.Runner.Run(ctx, argv[0], argv[1:]...)
		if err != nil {
			lastErr = err
			if cerr.Is(err, exec.ErrNotFound) {
				continue
			}
			return err
		}
		if !res.Success {
			return cerr.Newf("%s exited %d: %s", argv[0], res.ExitCode, strings.TrimSpace(res.Stderr))
		}
		return nil
	}
	if lastErr == nil {
		lastErr = cerr.New("no command configured")
	}
	return lastErr
}
