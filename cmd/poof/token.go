package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/ohong/poof/internal/config"
	jwtpkg "github.com/ohong/poof/pkg/jwt"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <owner-id>",
		Short: "Mint a bearer token for local development",
		Long: `Signs an access token for owner-id with JWT_SECRET. Production tokens
come from the identity provider; this is for exercising the API locally.`,
		Example: `  curl -H "Authorization: Bearer $(poof token user_123)" localhost:8080/api/v1/objects`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New()
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			if ttl <= 0 {
				ttl = cfg.JWTAccessTokenDuration
			}
			token, err := jwtpkg.GenerateToken(args[0], jwtpkg.AccessToken, cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default JWT_ACCESS_TOKEN_DURATION)")

	return cmd
}
