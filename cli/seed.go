package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/hours-engine/seed"
)

func newSeedCmd(flags *rootFlags) *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo organization into an empty database",
		Long: `Creates demo actors, clients, tasks and finished sessions. Sessions are
placed in the month before --ref (default today).`,
		Args: cobra.NoArgs,
		RunE: flags.withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			at := e.clock.Now()
			if ref != "" {
				parsed, err := time.ParseInLocation(time.DateOnly, ref, e.loc)
				if err != nil {
					return fmt.Errorf("invalid --ref %q (use YYYY-MM-DD): %w", ref, err)
				}
				at = parsed
			}
			demo, err := seed.Load(cmd.Context(), e.catalog, e.machine, at)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d actors, %d clients, %d tasks, %d sessions\n",
				len(demo.Actors), len(demo.Clients), len(demo.Tasks), len(demo.Sessions))
			return nil
		}),
	}
	cmd.Flags().StringVar(&ref, "ref", "", "reference date (YYYY-MM-DD)")
	return cmd
}
