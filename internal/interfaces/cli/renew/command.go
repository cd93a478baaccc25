// Package renew runs the renewal and tier advance batches once, for cron
// driven deployments that do not run the scheduler in the server.
package renew

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rackgrid/rackgrid/internal/interfaces/cli/bootstrap"
	httpRouter "github.com/rackgrid/rackgrid/internal/interfaces/http"
	"github.com/rackgrid/rackgrid/internal/shared/biztime"
)

var (
	configPath  string
	at          string
	skipAdvance bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "renew",
		Short: "Run one renewal pass",
		Long:  `Charge every auto-renewing subscription that is due, then advance expired tiers.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
	cmd.Flags().StringVar(&at, "at", "", "Evaluate as of this RFC3339 instant instead of now")
	cmd.Flags().BoolVar(&skipAdvance, "skip-advance", false, "Do not advance expired tiers after renewal")

	return cmd
}

func parseAt(value string) (time.Time, error) {
	if value == "" {
		return biztime.NowUTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: %w", value, err)
	}
	return t.UTC(), nil
}

func run(cmd *cobra.Command, args []string) error {
	now, err := parseAt(at)
	if err != nil {
		return err
	}

	rt, err := bootstrap.Init(configPath)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	container, err := httpRouter.NewContainer(ctx, rt.Config, rt.DB, rt.Logger)
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	defer func() {
		if err := container.Shutdown(); err != nil {
			rt.Logger.Errorw("failed to shut down container", "error", err)
		}
	}()

	renewed, err := container.RenewalJob().Execute(ctx, now)
	if err != nil {
		return fmt.Errorf("renewal failed after %d renewals: %w", renewed, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "renewed: %d\n", renewed)

	if skipAdvance {
		return nil
	}

	advanced, err := container.AdvanceJob().Execute(ctx, now)
	if err != nil {
		return fmt.Errorf("tier advance failed after %d facilities: %w", advanced, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "advanced: %d\n", advanced)

	return nil
}
