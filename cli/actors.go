package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/warp/hours-engine/catalog"
	"github.com/warp/hours-engine/ledger"
)

func newActorsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actors",
		Short: "Manage actors",
	}

	list := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List actors",
		Args:    cobra.NoArgs,
		RunE: flags.withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			actors, err := e.catalog.Actors(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(actors) == 0 {
				fmt.Fprintln(out, "No actors found. Use 'hoursctl seed' to load the demo organization.")
				return nil
			}

			now := e.clock.Now()
			fmt.Fprintf(out, "%-12s %-24s %-12s %-12s %-12s %-8s %s\n", "LOGIN", "NAME", "ROLE", "DEPARTMENT", "MANAGER", "ACTIVE", "CREATED")
			fmt.Fprintln(out, strings.Repeat("-", 96))
			for _, a := range actors {
				manager := "-"
				if a.ManagerLogin != nil {
					manager = string(*a.ManagerLogin)
				}
				active := "yes"
				if !a.Active {
					active = "no"
				}
				fmt.Fprintf(out, "%-12s %-24s %-12s %-12s %-12s %-8s %s\n",
					a.Login, truncate(a.DisplayName, 24), a.Role, truncate(a.Department, 12), manager, active,
					humanize.RelTime(a.CreatedAt, now, "ago", "from now"))
			}
			return nil
		}),
	}

	setActive := func(use, short string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " LOGIN",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: flags.withEnv(func(cmd *cobra.Command, args []string, e *env) error {
				a, err := e.catalog.UpdateActor(cmd.Context(), ledger.ActorID(args[0]), catalog.ActorUpdate{Active: &active})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", a.Login, map[bool]string{true: "active", false: "inactive"}[a.Active])
				return nil
			}),
		}
	}

	cmd.AddCommand(
		list,
		setActive("activate", "Re-activate an actor", true),
		setActive("deactivate", "Deactivate an actor; their history is kept", false),
	)
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
