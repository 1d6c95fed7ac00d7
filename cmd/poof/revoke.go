package main

import (
	"fmt"
	"time"

	"github.com/ohong/poof/internal/config"
	"github.com/ohong/poof/internal/logging"
	"github.com/ohong/poof/internal/models"
	"github.com/ohong/poof/internal/services"
	jwtpkg "github.com/ohong/poof/pkg/jwt"
	"github.com/spf13/cobra"
)

func newRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <token>",
		Short: "Reject a bearer token until it expires",
		Long: `Adds token to the redis revocation list for the rest of its lifetime.
Requests presenting it get 401 from then on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New()
			logger := logging.New(cfg.Env)
			token := args[0]

			claims, err := jwtpkg.ValidateToken(token, cfg.JWTSecret)
			if err != nil {
				return fmt.Errorf("token is not valid: %w", err)
			}
			ttl := cfg.JWTAccessTokenDuration
			if claims.ExpiresAt != nil {
				ttl = time.Until(claims.ExpiresAt.Time)
			}

			redisClient := models.InitRedis(cfg)
			if redisClient != nil {
				defer redisClient.Close()
			}
			auth := services.NewAuthService(cfg, redisClient, logger)
			if err := auth.Revoke(cmd.Context(), token, ttl); err != nil {
				return fmt.Errorf("revoke token: %w", err)
			}
			logger.Info("token revoked", "owner_id", claims.Identity(), "ttl", ttl)
			return nil
		},
	}
}
