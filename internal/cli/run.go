package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Hara602/opsclean/internal/cleanup"
	"github.com/Hara602/opsclean/internal/core"
	"github.com/Hara602/opsclean/internal/eraser"
	"github.com/Hara602/opsclean/internal/execute"
	"github.com/Hara602/opsclean/internal/monitor"
	"github.com/Hara602/opsclean/internal/report"
	"github.com/Hara602/opsclean/pkg/action"
)

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every configured cleanup task and save the action report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := execute.NewCommandRunner(execute.Options{
				Timeout: s.cfg.Exec.Timeout,
				DryRun:  s.cfg.Exec.DryRun,
				Logger:  s.logger,
			})
			return s.execute(ctx, cmd.OutOrStdout(), func(er cleanup.Eraser) []cleanup.Step {
				return core.BuildSteps(s.cfg.Tasks, runner, er, s.logger)
			})
		},
	}

	f := cmd.Flags()
	f.Bool("dry-run", false, "log external commands instead of running them")
	f.String("report-dir", "", "directory for JSON and markdown reports")
	f.Int("capacity", 0, "action bus capacity")
	f.StringSlice("sweep-dir", nil, "directories to watch for new files during the session")
	f.Duration("sweep-window", 0, "how long to watch sweep directories")
	f.Bool("markdown", true, "also write a markdown report")
	f.Bool("mail", false, "mail the report using the mail.* settings")
	return cmd
}

// execute runs one session: build the monitor and eraser, let steps build
// on them, run the engine and print the summary.
func (s *session) execute(ctx context.Context, out io.Writer, build func(cleanup.Eraser) []cleanup.Step) error {
	mon := monitor.New(monitor.Options{
		Capacity: s.cfg.Monitor.Capacity,
		Verbose:  s.cfg.Monitor.Verbose,
		Logger:   s.logger,
	})
	er := eraser.New(mon, eraser.Options{
		Logger: s.logger,
		Tracer: s.tp.Tracer("opsclean/eraser"),
	})

	opts := core.Options{
		Logger:    s.logger,
		Tracer:    s.tp.Tracer("opsclean/core"),
		Session:   s.id,
		ReportDir: s.cfg.Report.Dir,
		Prefix:    s.prefix(),
		Markdown:  s.cfg.Report.Markdown,
	}
	if s.cfg.Mail.Enabled {
		mailer, err := report.NewMailer(report.MailConfig{
			Addr:     s.cfg.Mail.Addr,
			From:     s.cfg.Mail.From,
			To:       s.cfg.Mail.To,
			Username: s.cfg.Mail.Username,
			Password: s.cfg.Mail.Password,
		}, s.logger)
		if err != nil {
			return err
		}
		opts.Mailer = mailer
	}

	engine := core.NewEngine(mon, opts)
	for _, step := range build(er) {
		engine.AddStep(step)
	}

	sum, err := engine.Run(ctx)
	printSummary(out, sum)
	if err != nil {
		s.logger.Error("Cleanup completed with errors", zap.Error(err))
	}
	return err
}

func printSummary(w io.Writer, sum core.Summary) {
	fmt.Fprintf(w, "Session %s: %d actions, %d failures\n", sum.Session, sum.Records, sum.Failures())

	kinds := make([]string, 0, len(sum.Counts))
	for k := range sum.Counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-20s %d\n", k, sum.Counts[action.Kind(k)])
	}

	if sum.JSONPath != "" {
		fmt.Fprintf(w, "Actions saved to %s\n", sum.JSONPath)
	}
	if sum.MarkdownPath != "" {
		fmt.Fprintf(w, "Report written to %s\n", sum.MarkdownPath)
	}
}
