// Package execute runs external programs for the cleanup steps that wrap OS
// commands (history clearing, firewall and DNS flushes).
package execute

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single command when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Result is the outcome of a command that was started.
type Result struct {
	Stdout   string
	Stderr   string
	Success  bool
	ExitCode int
}

// Runner is the external command capability the cleanup steps depend on.
type Runner interface {
	Run(ctx context.Context, program string, args ...string) (Result, error)
}

type Options struct {
	Timeout time.Duration
	// DryRun logs the command and reports success without running it.
	DryRun bool
	Logger *zap.Logger
}

// CommandRunner runs programs directly, never through a shell wrapper it adds itself.
type CommandRunner struct {
	timeout time.Duration
	dryRun  bool
	logger  *zap.Logger
}

func NewCommandRunner(opts Options) *CommandRunner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CommandRunner{timeout: timeout, dryRun: opts.DryRun, logger: logger.Named("execute")}
}

// Run executes program with args. A non-zero exit is reported through
// Result.Success; err is only set when the program could not be started or
// was killed by the timeout.
func (r *CommandRunner) Run(ctx context.Context, program string, args ...string) (Result, error) {
	cmdStr := buildCommandString(program, args...)

	if r.dryRun {
		r.logger.Info("Dry run mode - command not executed", zap.String("command", cmdStr))
		return Result{Success: true}, nil
	}

	rc, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(rc, program, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Info("Starting execution", zap.String("command", cmdStr))
	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Success = true
		r.logger.Info("Execution succeeded", zap.String("command", cmdStr))
		return res, nil
	case rc.Err() != nil:
		return res, cerr.Wrapf(rc.Err(), "command %q did not finish", cmdStr)
	case cerr.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		r.logger.Warn("Execution failed",
			zap.String("command", cmdStr),
			zap.Int("exit_code", res.ExitCode),
			zap.String("stderr", strings.TrimSpace(res.Stderr)),
		)
		return res, nil
	default:
		return res, cerr.Wrapf(err, "start %q", cmdStr)
	}
}

func buildCommandString(command string, args ...string) string {
	if len(args) == 0 {
		return command
	}
	return command + " " + strings.Join(args, " ")
}
