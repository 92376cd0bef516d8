// Package cli wires configuration, logging and telemetry into the opsclean
// commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Hara602/opsclean/internal/config"
	"github.com/Hara602/opsclean/internal/telemetry"
	"github.com/Hara602/opsclean/pkg/logging"
)

// app carries what the persistent flags decide. Each root command gets its
// own, so tests can build as many as they like.
type app struct {
	v          *viper.Viper
	configFile string
	envFile    string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "opsclean",
		Short: "Post-operation cleanup with an audited action log",
		Long: `opsclean removes the traces an operation leaves behind: temporary files,
shell history, log lines, network state and sensitive files, which are
overwritten before they are unlinked. Every action is recorded and saved
as a JSON report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (YAML, TOML or JSON)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file with OPSCLEAN_* secrets")
	pf.Bool("debug", false, "debug logging and per-action trace")
	pf.String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(a.runCmd(), a.eraseCmd(), a.showCmd())
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// flagKeys maps flag names to configuration keys where they differ.
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"dry-run":      "exec.dry_run",
	"report-dir":   "report.dir",
	"capacity":     "monitor.capacity",
	"sweep-window": "tasks.sweep_window",
	"sweep-dir":    "tasks.sweep_dirs",
	"mail":         "mail.enabled",
	"markdown":     "report.markdown",
}

// bindFlags binds every flag known to flagKeys, plus "debug", to v. Flags()
// already includes the persistent flags once cobra has parsed them.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var result error
	bind := func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if f.Name == "debug" {
			key, ok = "debug", true
		}
		if !ok {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			result = multierror.Append(result, err)
		}
	}
	cmd.Flags().VisitAll(bind)
	return result
}

// session is everything a command needs once configuration is loaded.
type session struct {
	id     string
	cfg    config.Config
	logger *zap.Logger
	tp     *telemetry.Provider
}

func (a *app) open(cmd *cobra.Command) (*session, error) {
	if err := bindFlags(cmd, a.v); err != nil {
		return nil, err
	}
	cfg, err := config.Load(a.v, a.configFile, a.envFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{Mode: cfg.Log.Mode, Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		// Nothing can be audited without a logger.
		return nil, cerr.Wrap(err, "initialise logger")
	}

	tp, err := telemetry.New(telemetry.Config{Enabled: cfg.Telemetry.Enabled, Path: cfg.Telemetry.Path})
	if err != nil {
		logger.Warn("Telemetry disabled", zap.Error(err))
		tp, _ = telemetry.New(telemetry.Config{})
	}

	id := uuid.NewString()
	return &session{
		id:     id,
		cfg:    cfg,
		logger: logger.With(zap.String("session", id)),
		tp:     tp,
	}, nil
}

// prefix is the report file prefix for this session.
func (s *session) prefix() string {
	return s.cfg.Report.Prefix + "_" + s.id
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tp.Shutdown(ctx); err != nil {
		s.logger.Warn("Telemetry shutdown failed", zap.Error(err))
	}
	logging.Close(s.logger)
}
