package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/warp/hours-engine/ledger"
	"github.com/warp/hours-engine/report"
)

func newReportCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print reports",
	}

	var (
		viewer  string
		filters report.Filters
		actor   string
		measure string
	)
	hours := &cobra.Command{
		Use:   "hours",
		Short: "Print the hours hierarchy visible to --as",
		Args:  cobra.NoArgs,
		RunE: flags.withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			scope, err := e.scopes.ScopeFor(cmd.Context(), ledger.ActorID(viewer))
			if err != nil {
				return err
			}
			filters.Actor = ledger.ActorID(actor)
			filters.Measure = report.Measure(measure)
			rep, err := e.reports.Aggregate(cmd.Context(), scope, filters)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s hours visible to %s: %s (%d sessions)\n", rep.Measure, viewer, rep.Hours.StringFixed(2), rep.Sessions)
			for _, g := range rep.Groups {
				line(out, 0, g.Label, g.Hours.StringFixed(2))
				for _, c := range g.Clients {
					line(out, 1, c.Label, c.Hours.StringFixed(2))
					for _, a := range c.Actors {
						line(out, 2, a.Label, a.Hours.StringFixed(2))
						for _, l := range a.TaskGroups {
							line(out, 3, l.Label, l.Hours.StringFixed(2))
						}
					}
				}
			}
			return nil
		}),
	}
	hours.Flags().StringVar(&viewer, "as", "", "login of the viewer whose scope applies")
	hours.Flags().IntVar(&filters.Year, "year", 0, "year")
	hours.Flags().IntVar(&filters.Month, "month", 0, "month (1-12)")
	hours.Flags().StringVar(&filters.Department, "department", "", "department")
	hours.Flags().StringVar(&actor, "actor", "", "single actor login")
	hours.Flags().StringVar(&filters.ClientGroup, "client-group", "", "client group code")
	hours.Flags().StringVar(&filters.TaskGroup, "task-group", "", "task group code")
	hours.Flags().StringVar(&measure, "measure", "worked", "worked or total")
	hours.MarkFlagRequired("as")

	cmd.AddCommand(hours)
	return cmd
}

func line(out io.Writer, depth int, label, hours string) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(out, "%s%-*s %8s\n", indent, 40-len(indent), label, hours)
}
