package main

import (
	"fmt"

	"sharecast/internal/core/services"
	"sharecast/pkg/validation"

	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenRole    string
)

// tokenCmd mints a bearer token offline, which is how the first controller
// token is obtained when auth is enabled.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token signed with the configured secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is not configured")
		}
		if err := validation.ValidateSubject(tokenSubject); err != nil {
			return err
		}
		if err := validation.ValidateRole(tokenRole); err != nil {
			return err
		}

		authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		token, err := authService.GenerateToken(tokenSubject, services.Role(tokenRole))
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "subject the token is issued to")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "controller", "role granted by the token (viewer or controller)")
	tokenCmd.MarkFlagRequired("subject")
}
