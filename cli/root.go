/*
Package cli implements hoursctl, the admin command line.

COMMANDS:
  hoursctl alerts run [--at RFC3339]     Run the open-session alert job
  hoursctl actors list                   List actors
  hoursctl actors activate LOGIN         Re-activate an actor
  hoursctl actors deactivate LOGIN       Deactivate an actor
  hoursctl report hours --as LOGIN ...   Print an hours report as LOGIN sees it
  hoursctl seed [--ref YYYY-MM-DD]       Load the demo organization

GLOBAL FLAGS:
  --config   YAML config file (same format as the server)
  --db       SQLite path (overrides config)

SCHEDULING:
  `alerts run` is what cron or a systemd timer should call once a day at
  alerts.trigger. Without --at it uses today's trigger time in the
  configured timezone. Re-running for the same day inserts nothing.
*/
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/hours-engine/access"
	"github.com/warp/hours-engine/alerts"
	"github.com/warp/hours-engine/catalog"
	"github.com/warp/hours-engine/config"
	"github.com/warp/hours-engine/ledger"
	"github.com/warp/hours-engine/logging"
	"github.com/warp/hours-engine/report"
	"github.com/warp/hours-engine/store/sqlite"
	"github.com/warp/hours-engine/tracking"
)

var version = "dev"

// SetVersion sets the version printed by `hoursctl version`.
func SetVersion(v string) { version = v }

type rootFlags struct {
	configPath string
	dbPath     string
}

// env is what a command needs, opened per invocation.
type env struct {
	cfg     *config.Config
	loc     *time.Location
	log     *zap.Logger
	store   *sqlite.Store
	clock   ledger.Clock
	catalog *catalog.Service
	machine *tracking.Machine
	scopes  *access.Resolver
	reports *report.Engine
	job     *alerts.Job
}

func (e *env) Close() error {
	e.log.Sync()
	return e.store.Close()
}

func (f *rootFlags) open() (*env, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.dbPath != "" {
		cfg.DB.Path = f.dbPath
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DB.Path, err)
	}

	clock := ledger.SystemClock{}
	return &env{
		cfg:     cfg,
		loc:     loc,
		log:     log,
		store:   store,
		clock:   clock,
		catalog: catalog.NewService(store, clock, log.Named("catalog")),
		machine: tracking.NewMachine(store, store, store, tracking.WithClock(clock), tracking.WithLogger(log.Named("tracking"))),
		scopes:  access.NewResolver(store),
		reports: report.NewEngine(store, store, store, loc, log.Named("report")),
		job:     alerts.NewJob(store, loc, log.Named("alerts")),
	}, nil
}

// withEnv opens the environment around a command body.
func (f *rootFlags) withEnv(fn func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := f.open()
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cmd, args, e)
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "hoursctl",
		Short:         "Administer the hours engine",
		Long:          "hoursctl runs scheduled jobs and administrative tasks against the hours engine database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "SQLite database path (overrides config)")

	root.AddCommand(
		newAlertsCmd(flags),
		newActorsCmd(flags),
		newReportCmd(flags),
		newSeedCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "hoursctl %s\n", version)
			},
		},
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
