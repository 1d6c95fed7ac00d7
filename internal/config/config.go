package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port   string
	Env    string
	APIUrl string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBTimeZone string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT (tokens are issued by the identity provider and signed with this secret)
	JWTSecret              string
	JWTAccessTokenDuration time.Duration

	// Blob storage
	StorageDriver    string // "local" | "s3" | "gcs"
	StoragePublicURL string
	LocalAssetsPath  string

	// S3-compatible storage
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	S3UsePathStyle    bool

	// Google Cloud Storage
	GCSBucket string

	// Image transform (BFL)
	BFLAPIKey             string
	BFLAPIURL             string
	TransformPollInterval time.Duration
	TransformTimeout      time.Duration

	// Descriptions
	DescriptionProvider    string // "anthropic" | "openai" | "gemini"
	AnthropicAPIKey        string
	AnthropicModel         string
	OpenAIAPIKey           string
	OpenAIModel            string
	GeminiAPIKey           string
	GeminiModel            string
	DescriptionTimeout     time.Duration
	DescriptionConcurrency int

	// Security
	RateLimitRequests int
	RateLimitDuration time.Duration
	UploadDailyLimit  int

	// CORS
	AllowedOrigins []string
}

func New() *Config {
	return &Config{
		// Server
		Port:   getEnv("PORT", "8080"),
		Env:    getEnv("ENV", "development"),
		APIUrl: getEnv("API_URL", "http://localhost:8080"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "poof"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "poof_db"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),
		DBTimeZone: getEnv("DB_TIMEZONE", "UTC"),

		// Redis
		RedisHost:     getEnvOrEmpty("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// JWT
		JWTSecret:              getEnv("JWT_SECRET", "your-secret-key"),
		JWTAccessTokenDuration: getEnvAsDuration("JWT_ACCESS_TOKEN_DURATION", "1h"),

		// Blob storage
		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
		StoragePublicURL: getEnv("STORAGE_PUBLIC_URL", ""),
		LocalAssetsPath:  getEnv("LOCAL_ASSETS_PATH", "./data/objects"),

		// S3
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3Bucket:          getEnv("S3_BUCKET", "object-images"),
		S3UsePathStyle:    getEnv("S3_USE_PATH_STYLE", "true") == "true",

		// GCS
		GCSBucket: getEnv("GCS_BUCKET", "object-images"),

		// Image transform
		BFLAPIKey:             getEnv("BFL_API_KEY", ""),
		BFLAPIURL:             getEnv("BFL_API_URL", "https://api.bfl.ai/v1/flux-2-pro"),
		TransformPollInterval: getEnvAsDuration("TRANSFORM_POLL_INTERVAL", "2s"),
		TransformTimeout:      getEnvAsDuration("TRANSFORM_TIMEOUT", "120s"),

		// Descriptions
		DescriptionProvider:    strings.ToLower(getEnv("DESCRIPTION_PROVIDER", "anthropic")),
		AnthropicAPIKey:        getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:         getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		OpenAIAPIKey:           getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:            getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		DescriptionTimeout:     getEnvAsDuration("DESCRIPTION_TIMEOUT", "30s"),
		DescriptionConcurrency: getEnvAsInt("DESCRIPTION_CONCURRENCY", 5),

		// Security
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitDuration: getEnvAsDuration("RATE_LIMIT_DURATION", "1m"),
		UploadDailyLimit:  getEnvAsInt("UPLOAD_DAILY_LIMIT", 200),

		// CORS
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrEmpty is getEnv, except an explicitly empty value is kept.
func getEnvOrEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}
	return time.Hour
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
