package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Hara602/opsclean/internal/cleanup"
)

func (a *app) eraseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "erase <path>...",
		Short: "Overwrite and delete files, recording each outcome",
		Long: `erase overwrites each file with 0x00, 0xFF, 0xAA and random bytes, syncing
after every pass, then unlinks it. Only the listed files are touched; no
other configured task runs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return s.execute(ctx, cmd.OutOrStdout(), func(er cleanup.Eraser) []cleanup.Step {
				return []cleanup.Step{&cleanup.SecureDelete{Paths: args, Eraser: er, Logger: s.logger}}
			})
		},
	}
	cmd.Flags().String("report-dir", "", "directory for JSON and markdown reports")
	cmd.Flags().Bool("markdown", true, "also write a markdown report")
	return cmd
}
