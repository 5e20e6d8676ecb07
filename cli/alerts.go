package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newAlertsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Open-session alerts",
	}

	var at string
	run := &cobra.Command{
		Use:   "run",
		Short: "Notify actors whose sessions started today are still open",
		Long: `Evaluates sessions started on the trigger date that are still in progress
or paused, and writes one notification per actor. Safe to run more than once
a day: the notification for a given actor and date is written only once.`,
		Args: cobra.NoArgs,
		RunE: flags.withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			trigger, err := e.cfg.TriggerOn(e.clock.Now())
			if err != nil {
				return err
			}
			if at != "" {
				if trigger, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at %q (use RFC 3339): %w", at, err)
				}
			}

			res, err := e.job.Run(cmd.Context(), trigger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trigger %s: %d open sessions, %d actors, %d notified, %d already notified\n",
				res.TriggerKey, res.Sessions, res.Actors, res.Notified, res.Skipped)
			return nil
		}),
	}
	run.Flags().StringVar(&at, "at", "", "trigger time (RFC 3339); default today at alerts.trigger")

	cmd.AddCommand(run)
	return cmd
}
