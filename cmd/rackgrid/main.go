package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rackgrid/rackgrid/internal/interfaces/cli/migrate"
	"github.com/rackgrid/rackgrid/internal/interfaces/cli/renew"
	"github.com/rackgrid/rackgrid/internal/interfaces/cli/server"
	"github.com/rackgrid/rackgrid/internal/interfaces/cli/token"
	"github.com/rackgrid/rackgrid/internal/shared/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "rackgrid",
		Short:        "RackGrid - colocation subscription service",
		Long:         `RackGrid sells rack capacity plans to facilities, renews them and reconciles Stripe payments.`,
		Version:      version.String(),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
		renew.NewCommand(),
		token.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
