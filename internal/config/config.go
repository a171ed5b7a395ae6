package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	AuthModeJWT    = "jwt"
	AuthModeGoTrue = "gotrue"

	ChatLogPostgres = "postgres"
	ChatLogMongo    = "mongo"
)

type Config struct {
	Port           string
	Environment    string   // ENV: production, development, etc.
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL
	TrustProxy     bool     // take client IPs from X-Forwarded-For

	// Database provider. DatabaseURL is the only hard requirement.
	DatabaseURL  string
	DBRLSRole    string // e.g. "authenticated"; empty disables SET LOCAL ROLE
	RedisURI     string
	MongoURI     string
	ChatLogStore string

	// Auth provider
	AuthMode        string
	SupabaseURL     string
	SupabaseAnonKey string
	JWTSecret       string
	TokenTTL        time.Duration
	AuthCacheTTL    time.Duration

	// LLM provider. Empty key degrades the AI routes to fallback text.
	GeminiAPIKey string
	GeminiModel  string
	LLMTimeout   time.Duration

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	EmergencyRateLimit  int
	EmergencyRateWindow time.Duration

	LogLevel string
	LogDev   bool
	LogFile  string
}

// Load reads the configuration from the environment. It fails when the
// database provider is not configured or the auth mode cannot work.
func Load() (*Config, error) {
	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", "http://localhost:5173"), getEnv("FRONTEND_URL_2", "")} {
			u = strings.TrimSpace(u)
			if u != "" && !containsOrigin(allowedOrigins, u) {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}

	cfg := &Config{
		Port:           getEnv("PORT", "3001"),
		Environment:    strings.ToLower(strings.TrimSpace(getEnv("ENV", "development"))),
		AllowedOrigins: allowedOrigins,
		TrustProxy:     getEnv("TRUST_PROXY", "") == "1",

		DatabaseURL:  getEnv("DATABASE_URL", getEnv("SUPABASE_DB_URL", "")),
		DBRLSRole:    strings.TrimSpace(getEnv("DB_RLS_ROLE", "")),
		RedisURI:     getEnv("REDIS_URI", ""),
		MongoURI:     getEnv("MONGODB_URI", getEnv("MONGO_URI", "")),
		ChatLogStore: strings.ToLower(getEnv("CHAT_LOG_BACKEND", ChatLogPostgres)),

		AuthMode:        strings.ToLower(getEnv("AUTH_MODE", AuthModeJWT)),
		SupabaseURL:     strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey: getEnv("SUPABASE_ANON_KEY", ""),
		JWTSecret:       getEnv("SUPABASE_JWT_SECRET", getEnv("JWT_SECRET", "")),
		TokenTTL:        getEnvDuration("TOKEN_TTL", time.Hour),
		AuthCacheTTL:    getEnvDuration("AUTH_CACHE_TTL", 60*time.Second),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		LLMTimeout:   getEnvDuration("LLM_TIMEOUT", 20*time.Second),

		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),

		EmergencyRateLimit:  getEnvInt("EMERGENCY_RATE_LIMIT", 3),
		EmergencyRateWindow: getEnvDuration("EMERGENCY_RATE_WINDOW", 15*time.Minute),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "")),
		LogDev:   getEnv("LOG_DEV", "") == "1",
		LogFile:  getEnv("LOG_FILE", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL (or SUPABASE_DB_URL) is required")
	}
	switch c.AuthMode {
	case AuthModeJWT:
		if c.JWTSecret == "" {
			return errors.New("SUPABASE_JWT_SECRET (or JWT_SECRET) is required when AUTH_MODE=jwt")
		}
	case AuthModeGoTrue:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required when AUTH_MODE=gotrue")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	switch c.ChatLogStore {
	case ChatLogPostgres:
	case ChatLogMongo:
		if c.MongoURI == "" {
			return errors.New("MONGODB_URI is required when CHAT_LOG_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("unknown CHAT_LOG_BACKEND %q", c.ChatLogStore)
	}
	if c.EmergencyRateLimit <= 0 || c.EmergencyRateWindow <= 0 {
		return errors.New("EMERGENCY_RATE_LIMIT and EMERGENCY_RATE_WINDOW must be positive")
	}
	return nil
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LLMConfigured reports whether a Gemini key is present.
func (c *Config) LLMConfigured() bool {
	return c.GeminiAPIKey != ""
}

// CloudinaryConfigured reports whether all Cloudinary credentials are set.
func (c *Config) CloudinaryConfigured() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsOrigin(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return d
}
