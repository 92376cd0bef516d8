package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Hara602/opsclean/internal/monitor"
	"github.com/Hara602/opsclean/internal/report"
)

func (a *app) showCmd() *cobra.Command {
	var (
		asMarkdown bool
		onlyErrors bool
	)
	cmd := &cobra.Command{
		Use:   "show <report.json>",
		Short: "Print a saved action report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := monitor.ReadJSON(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if asMarkdown {
				body, err := report.Render(report.Data{Records: records, JSONPath: args[0]})
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(out, body)
				return err
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACTION\tDETAIL")
			shown := 0
			for _, r := range records {
				if onlyErrors && !r.Action.IsError() {
					continue
				}
				detail := r.Action.Detail
				if !r.Action.Kind.HasPayload() {
					detail = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Timestamp.Format(time.RFC3339), r.Action.Kind, detail)
				shown++
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d of %d actions\n", shown, len(records))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asMarkdown, "markdown", false, "render the report as markdown")
	cmd.Flags().BoolVar(&onlyErrors, "errors", false, "only show Error actions")
	return cmd
}
