package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenValidator resolves a bearer token to the owner id it was issued for.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (string, error)
}

// Auth rejects requests without a valid bearer token and stores the owner
// id under "userID" for the handlers.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		ownerID, err := validator.ValidateAccessToken(c.Request.Context(), strings.TrimSpace(token))
		if err != nil || ownerID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set("userID", ownerID)
		c.Next()
	}
}

// OwnerID returns the authenticated owner id set by Auth.
func OwnerID(c *gin.Context) (string, bool) {
	id := c.GetString("userID")
	return id, id != ""
}
