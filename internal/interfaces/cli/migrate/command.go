package migrate

import (
	"fmt"
	"text/tabwriter"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/rackgrid/rackgrid/internal/infrastructure/migration"
	"github.com/rackgrid/rackgrid/internal/interfaces/cli/bootstrap"
)

var (
	configPath string
	steps      int
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Manage database migrations: apply pending scripts, roll back, and show status.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")

	cmd.AddCommand(
		newUpCommand(),
		newDownCommand(),
		newStatusCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		Long:  `Apply all pending migrations. sqlite databases are automigrated from the models.`,
		RunE:  runUp,
	}
}

func newDownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		Long:  `Rollback a number of goose migrations.`,
		RunE:  runDown,
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  `List every goose migration with its state and apply time.`,
		RunE:  runStatus,
	}
}

func runUp(cmd *cobra.Command, args []string) error {
	rt, err := bootstrap.Init(configPath)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Migrate(cmd.Context()); err != nil {
		rt.Logger.Errorw("migration failed", "error", err)
		return err
	}

	rt.Logger.Infow("migrations completed successfully")
	return nil
}

func gooseRuntime() (*bootstrap.Runtime, *migration.GooseStrategy, error) {
	rt, err := bootstrap.Init(configPath)
	if err != nil {
		return nil, nil, err
	}
	if rt.Config.Database.Driver == "sqlite" {
		rt.Close()
		return nil, nil, fmt.Errorf("goose migrations are not used with the sqlite driver")
	}
	return rt, migration.NewGooseStrategy(goose.DialectMySQL, rt.Logger), nil
}

func runDown(cmd *cobra.Command, args []string) error {
	if steps < 1 {
		return fmt.Errorf("steps must be at least 1")
	}

	rt, strategy, err := gooseRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.Logger.Infow("running down migrations", "steps", steps)

	for i := 0; i < steps; i++ {
		if err := strategy.Down(cmd.Context(), rt.DB); err != nil {
			rt.Logger.Errorw("down migration failed", "error", err, "completed", i)
			return err
		}
	}

	rt.Logger.Infow("down migration completed successfully")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, strategy, err := gooseRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	statuses, err := strategy.Status(cmd.Context(), rt.DB)
	if err != nil {
		return err
	}

	return printStatus(cmd, statuses)
}

func printStatus(cmd *cobra.Command, statuses []*goose.MigrationStatus) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tPATH")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
	}
	return w.Flush()
}
