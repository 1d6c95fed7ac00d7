package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ohong/poof/internal/config"
	jwtpkg "github.com/ohong/poof/pkg/jwt"
	"github.com/redis/go-redis/v9"
)

var (
	ErrTokenRevoked    = errors.New("token has been revoked")
	ErrInvalidIdentity = errors.New("token identity is not a valid owner id")
	ErrWrongTokenType  = errors.New("invalid token type")
)

// AuthService resolves bearer tokens to owner ids. The identity provider is
// external; this service only verifies signatures and the revocation list.
type AuthService struct {
	secret string
	redis  *redis.Client
	logger *slog.Logger
}

func NewAuthService(cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		secret: cfg.JWTSecret,
		redis:  redisClient,
		logger: logger,
	}
}

func blacklistKey(token string) string {
	return fmt.Sprintf("blacklist:token:%s", token)
}

// ValidateAccessToken returns the owner id carried by token.
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (string, error) {
	claims, err := jwtpkg.ValidateToken(token, s.secret)
	if err != nil {
		return "", err
	}
	if claims.TokenType != "" && claims.TokenType != jwtpkg.AccessToken {
		return "", ErrWrongTokenType
	}

	owner := claims.Identity()
	// Owner ids become storage path segments.
	if owner == "." || owner == ".." || strings.ContainsAny(owner, `/\`) {
		return "", ErrInvalidIdentity
	}

	// A missing or unreachable redis does not block authentication.
	if s.redis != nil {
		exists, err := s.redis.Exists(ctx, blacklistKey(token)).Result()
		if err != nil {
			s.logger.Warn("could not check token blacklist", "error", err)
		} else if exists > 0 {
			return "", ErrTokenRevoked
		}
	}

	return owner, nil
}

// Revoke blacklists token for ttl, which should cover its remaining lifetime.
func (s *AuthService) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if s.redis == nil {
		return errors.New("token revocation requires redis")
	}
	return s.redis.Set(ctx, blacklistKey(token), 1, ttl).Err()
}
