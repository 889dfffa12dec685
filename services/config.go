package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Environment string
	Debug       bool
	Server      ServerConfig
	Database    DatabaseConfig
	AI          AIConfig
	JWT         JWTConfig
	OAuth       OAuthConfig
	WebSocket   WebSocketConfig
	RateLimit   RateLimitConfig
	Storage     StorageConfig
	Interview   InterviewConfig
	Export      ExportConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port               string
	WebOrigin          string
	CORSAllowedOrigins string
}

type DatabaseConfig struct {
	URL          string
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type AIConfig struct {
	Provider     string
	GroqAPIKey   string
	GroqBaseURL  string
	GroqModel    string
	GeminiAPIKey string
	GeminiModel  string
}

type JWTConfig struct {
	Secret string
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	SessionSecret      string
}

type WebSocketConfig struct {
	AllowedOrigins string
}

type RateLimitConfig struct {
	RedisURL string
	Requests int
	Window   time.Duration
}

type StorageConfig struct {
	Backend   string
	MediaRoot string
	MediaURL  string
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type InterviewConfig struct {
	StaleAfter time.Duration
}

type ExportConfig struct {
	ChromePath string
}

type LogConfig struct {
	File  string
	Level string
}

// Production reports whether cookies must be marked Secure.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

var envBindings = map[string]string{
	"environment":                 "ENVIRONMENT",
	"debug":                       "DEBUG",
	"server.port":                 "SERVER_PORT",
	"server.web_origin":           "WEB_ORIGIN",
	"server.cors_allowed_origins": "CORS_ALLOWED_ORIGINS",
	"websocket.allowed_origins":   "WEBSOCKET_ALLOWED_ORIGINS",
	"database.url":                "DATABASE_URL",
	"database.seed":               "DATABASE_SEED",
	"database.log_level":          "DATABASE_LOG_LEVEL",
	"database.max_idle_conns":     "DATABASE_MAX_IDLE_CONNS",
	"database.max_open_conns":     "DATABASE_MAX_OPEN_CONNS",
	"jwt.secret":                  "JWT_SECRET",
	"oauth.session_secret":        "SESSION_SECRET",
	"oauth.google_client_id":      "GOOGLE_CLIENT_ID",
	"oauth.google_client_secret":  "GOOGLE_CLIENT_SECRET",
	"oauth.google_redirect_url":   "GOOGLE_REDIRECT_URL",
	"ai.provider":                 "AI_PROVIDER",
	"groq.api_key":                "GROQ_API_KEY",
	"groq.base_url":               "GROQ_BASE_URL",
	"groq.model":                  "GROQ_MODEL",
	"gemini.api_key":              "GEMINI_API_KEY",
	"gemini.model":                "GEMINI_MODEL",
	"redis.url":                   "REDIS_URL",
	"rate_limit.requests":         "RATE_LIMIT_REQUESTS",
	"rate_limit.window":           "RATE_LIMIT_WINDOW",
	"storage.backend":             "STORAGE_BACKEND",
	"storage.media_root":          "MEDIA_ROOT",
	"storage.media_url":           "MEDIA_URL",
	"s3.endpoint":                 "S3_ENDPOINT",
	"s3.bucket":                   "S3_BUCKET",
	"s3.region":                   "S3_REGION",
	"s3.access_key":               "S3_ACCESS_KEY",
	"s3.secret_key":               "S3_SECRET_KEY",
	"s3.use_ssl":                  "S3_USE_SSL",
	"interview.stale_after":       "INTERVIEW_STALE_AFTER",
	"export.chrome_path":          "CHROME_PATH",
	"log.file":                    "LOG_FILE",
	"log.level":                   "LOG_LEVEL",
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("environment", "development")
	viper.SetDefault("debug", "false")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.web_origin", "http://localhost:5173")
	viper.SetDefault("server.cors_allowed_origins", "http://localhost:5173")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.seed", "false")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("oauth.google_redirect_url", "http://localhost:8080/api/v1/auth/google/callback")
	viper.SetDefault("ai.provider", "groq")
	viper.SetDefault("groq.model", "llama-3.3-70b-versatile")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("rate_limit.requests", "100")
	viper.SetDefault("rate_limit.window", "60s")
	viper.SetDefault("storage.backend", "local")
	viper.SetDefault("storage.media_root", "media")
	viper.SetDefault("storage.media_url", "/media/")
	viper.SetDefault("s3.use_ssl", "true")
	viper.SetDefault("interview.stale_after", "2h")
	viper.SetDefault("log.level", "info")

	// Map environment variables to config keys
	for key, env := range envBindings {
		viper.BindEnv(key, env)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Environment: viper.GetString("environment"),
		Debug:       viper.GetBool("debug"),
		Server: ServerConfig{
			Port:               viper.GetString("server.port"),
			WebOrigin:          viper.GetString("server.web_origin"),
			CORSAllowedOrigins: viper.GetString("server.cors_allowed_origins"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			Seed:         viper.GetBool("database.seed"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		AI: AIConfig{
			Provider:     viper.GetString("ai.provider"),
			GroqAPIKey:   viper.GetString("groq.api_key"),
			GroqBaseURL:  viper.GetString("groq.base_url"),
			GroqModel:    viper.GetString("groq.model"),
			GeminiAPIKey: viper.GetString("gemini.api_key"),
			GeminiModel:  viper.GetString("gemini.model"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     viper.GetString("oauth.google_client_id"),
			GoogleClientSecret: viper.GetString("oauth.google_client_secret"),
			GoogleRedirectURL:  viper.GetString("oauth.google_redirect_url"),
			SessionSecret:      viper.GetString("oauth.session_secret"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
		RateLimit: RateLimitConfig{
			RedisURL: viper.GetString("redis.url"),
			Requests: viper.GetInt("rate_limit.requests"),
			Window:   viper.GetDuration("rate_limit.window"),
		},
		Storage: StorageConfig{
			Backend:   viper.GetString("storage.backend"),
			MediaRoot: viper.GetString("storage.media_root"),
			MediaURL:  viper.GetString("storage.media_url"),
			Endpoint:  viper.GetString("s3.endpoint"),
			Bucket:    viper.GetString("s3.bucket"),
			Region:    viper.GetString("s3.region"),
			AccessKey: viper.GetString("s3.access_key"),
			SecretKey: viper.GetString("s3.secret_key"),
			UseSSL:    viper.GetBool("s3.use_ssl"),
		},
		Interview: InterviewConfig{
			StaleAfter: viper.GetDuration("interview.stale_after"),
		},
		Export: ExportConfig{
			ChromePath: viper.GetString("export.chrome_path"),
		},
		Log: LogConfig{
			File:  viper.GetString("log.file"),
			Level: viper.GetString("log.level"),
		},
	}
}
