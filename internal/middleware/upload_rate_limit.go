package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ohong/poof/internal/config"
	"github.com/redis/go-redis/v9"
)

// UploadRateLimit caps how many upload and process calls an owner may make
// per day. Must run after Auth.
func UploadRateLimit(redisClient *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil || cfg.UploadDailyLimit <= 0 || c.Request.Method != http.MethodPost || !isUploadEndpoint(c.FullPath()) {
			c.Next()
			return
		}

		ownerID, ok := OwnerID(c)
		if !ok {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		// Resets daily at midnight
		now := time.Now()
		key := fmt.Sprintf("upload_limit:%s:%s", ownerID, now.Format("2006-01-02"))

		count, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			slog.Warn("upload limiter unavailable", "owner_id", ownerID, "error", err)
			c.Next()
			return
		}
		if count == 1 {
			midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
			redisClient.Expire(ctx, key, midnight.Sub(now))
		}

		if int(count) > cfg.UploadDailyLimit {
			ttl, _ := redisClient.TTL(ctx, key).Result()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":               "Too many uploads today. Please try again tomorrow.",
				"retry_after_hours":   int(ttl.Hours()),
				"max_uploads_per_day": cfg.UploadDailyLimit,
			})
			return
		}

		c.Next()
	}
}

func isUploadEndpoint(path string) bool {
	return path == "/api/v1/upload" || path == "/api/v1/process"
}
