// Package token issues bearer tokens for operators and local testing.
package token

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rackgrid/rackgrid/internal/infrastructure/auth"
	"github.com/rackgrid/rackgrid/internal/infrastructure/config"
)

var (
	configPath string
	facilityID string
	userID     string
	superAdmin bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token",
		Long:  `Sign a bearer token with the configured JWT secret.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
	cmd.Flags().StringVar(&facilityID, "facility", "", "Facility the token acts for")
	cmd.Flags().StringVar(&userID, "user", "", "User id recorded as the actor (required)")
	cmd.Flags().BoolVar(&superAdmin, "admin", false, "Grant super admin access")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if facilityID == "" && !superAdmin {
		return fmt.Errorf("either --facility or --admin is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	svc := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	token, err := svc.Generate(facilityID, userID, superAdmin)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
