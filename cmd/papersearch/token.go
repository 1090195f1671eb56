package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"paper-search-go/pkg/token"
)

var (
	tokenSubject string
	tokenRole    string
)

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "Token subject, recorded as requested_by on enqueued papers")
	tokenCmd.Flags().StringVar(&tokenRole, "role", token.RoleAdmin, "Role claim")
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for the ingest API",
	Long: `Mint a signed access token using jwt.secret from the config.

Example:
  papersearch token --subject alice`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	signed, err := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours).GenerateToken(tokenSubject, tokenRole)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	if humanOutput {
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		return nil
	}
	return outputJSON(cmd.OutOrStdout(), map[string]string{"token": signed, "subject": tokenSubject, "role": tokenRole})
}
