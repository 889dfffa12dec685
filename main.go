package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/careerhub/backend/export"
	"github.com/careerhub/backend/llm"
	"github.com/careerhub/backend/migrations"
	"github.com/careerhub/backend/questionbank"
	"github.com/careerhub/backend/repository"
	"github.com/careerhub/backend/services"
	"github.com/careerhub/backend/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// Setup structured logging with JSON format
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := services.LoadConfig()
	closeLog := setupLogging(cfg.Log)
	defer closeLog()

	if cfg.Database.URL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()

	gormDB, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.Database.LogLevel)),
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		slog.Error("Failed to get database handle", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	slog.Info("Connected to database")

	if err := migrations.Up(sqlDB); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	repo := repository.NewGORMRepository(gormDB)
	if cfg.Database.Seed {
		if err := services.NewDatabaseSeeder(repo).SeedDatabase(ctx); err != nil {
			slog.Error("Failed to seed database", "error", err)
		}
	}

	// health checks go through a small pgx pool so they do not queue behind ORM traffic
	var pinger services.Pinger = repo
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		slog.Warn("Failed to open health check pool, using ORM pool", "error", err)
	} else {
		defer pool.Close()
		pinger = pool
	}

	var counter services.Counter
	if cfg.RateLimit.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RateLimit.RedisURL)
		if err != nil {
			slog.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis unavailable, rate limiting in memory", "error", err)
		} else {
			counter = services.NewRedisCounter(rdb)
			slog.Info("Rate limiting backed by Redis")
		}
	}

	model, err := llm.New(ctx, llm.Config{
		Provider:     cfg.AI.Provider,
		GroqAPIKey:   cfg.AI.GroqAPIKey,
		GroqBaseURL:  cfg.AI.GroqBaseURL,
		GroqModel:    cfg.AI.GroqModel,
		GeminiAPIKey: cfg.AI.GeminiAPIKey,
		GeminiModel:  cfg.AI.GeminiModel,
	})
	if err != nil {
		slog.Error("Failed to initialize AI provider, continuing without it", "error", err)
		model = nil
	}

	files, err := storage.New(ctx, storage.Config{
		Backend:   cfg.Storage.Backend,
		MediaRoot: cfg.Storage.MediaRoot,
		MediaURL:  cfg.Storage.MediaURL,
		Endpoint:  cfg.Storage.Endpoint,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	bank, err := questionbank.Load()
	if err != nil {
		slog.Error("Failed to load question banks", "error", err)
		os.Exit(1)
	}

	server := services.NewServer(cfg, services.Dependencies{
		Store:     repo,
		DBPinger:  pinger,
		Assistant: llm.NewAssistant(model),
		Bank:      bank,
		Renderer:  export.NewChromeRenderer(cfg.Export.ChromePath),
		Files:     files,
		Counter:   counter,
	})
	if err := server.InitializeServices(); err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	server.Start()
}

// setupLogging installs the JSON handler at the configured level, teeing into a daily
// rotated file when LOG_FILE is set.
func setupLogging(cfg services.LogConfig) func() {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.File != "" {
		rl, err := rotatelogs.New(
			cfg.File+".%Y%m%d",
			rotatelogs.WithLinkName(cfg.File),
			rotatelogs.WithRotationTime(24*time.Hour),
			rotatelogs.WithMaxAge(7*24*time.Hour),
		)
		if err != nil {
			slog.Error("Failed to open log file, logging to stdout only", "error", err, "file", cfg.File)
		} else {
			out = io.MultiWriter(os.Stdout, rl)
			closeFn = func() { rl.Close() }
		}
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})))
	return closeFn
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}
