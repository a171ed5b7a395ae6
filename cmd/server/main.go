package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AnshRaj112/safezone-backend/internal/config"
	"github.com/AnshRaj112/safezone-backend/internal/database"
	"github.com/AnshRaj112/safezone-backend/internal/handlers"
	"github.com/AnshRaj112/safezone-backend/internal/logger"
	"github.com/AnshRaj112/safezone-backend/internal/middleware"
	"github.com/AnshRaj112/safezone-backend/internal/routes"
	"github.com/AnshRaj112/safezone-backend/internal/services"
	"github.com/AnshRaj112/safezone-backend/internal/validation"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := logger.New(logger.Config{Level: cfg.LogLevel, Dev: cfg.LogDev, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()
	zap.ReplaceGlobals(zlog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validation.Init()

	// PostgreSQL is the only hard dependency.
	zlog.Info("Connecting to PostgreSQL...")
	db, err := database.ConnectPostgres(ctx, cfg.DatabaseURL, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer database.DisconnectPostgres(db)

	var redisClient *redis.Client
	if cfg.RedisURI != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURI, zlog)
		if err != nil {
			zlog.Warn("Redis unavailable; rate limits, auth cache and realtime stay in-process", zap.Error(err))
		} else {
			defer database.DisconnectRedis(redisClient)
		}
	} else {
		zlog.Info("REDIS_URI not set; rate limits, auth cache and realtime stay in-process")
	}

	scopes := database.NewScopes(db, cfg.DBRLSRole)
	cache := services.NewCacheService(redisClient)

	var (
		provider services.AuthProvider
		accounts handlers.Accounts
	)
	switch cfg.AuthMode {
	case config.AuthModeGoTrue:
		provider = services.NewGoTrueProvider(cfg.SupabaseURL, cfg.SupabaseAnonKey, cache, cfg.AuthCacheTTL, zlog)
		zlog.Info("✅ Auth: hosted GoTrue", zap.String("url", cfg.SupabaseURL))
	default:
		jwtProvider := services.NewJWTProvider(cfg.JWTSecret, cfg.TokenTTL)
		provider = jwtProvider
		accounts = services.NewAccountService(db, jwtProvider)
		zlog.Info("✅ Auth: self-hosted accounts with HS256 tokens")
	}

	hub := services.NewHub(redisClient, zlog)
	go hub.Run(ctx)

	var emergencyLimiter middleware.Limiter
	if redisClient != nil {
		emergencyLimiter = middleware.NewRedisLimiter(redisClient, cfg.EmergencyRateLimit, cfg.EmergencyRateWindow, zlog)
	} else {
		mem := middleware.NewMemoryLimiter(cfg.EmergencyRateLimit, cfg.EmergencyRateWindow)
		mem.StartCleanup(ctx, time.Minute)
		emergencyLimiter = mem
	}

	var llm services.LLM
	if cfg.LLMConfigured() {
		gemini, err := services.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			zlog.Warn("Gemini unavailable; AI routes use fallback text", zap.Error(err))
		} else {
			defer gemini.Close()
			llm = gemini
			zlog.Info("✅ Gemini client initialized", zap.String("model", cfg.GeminiModel))
		}
	} else {
		zlog.Warn("GEMINI_API_KEY not set; AI routes use fallback text")
	}

	var chatLogs services.ChatLogStore = services.NewPostgresChatLogs()
	if cfg.ChatLogStore == config.ChatLogMongo {
		mongoClient, mongoDB, err := database.ConnectMongo(ctx, cfg.MongoURI, zlog)
		if err != nil {
			zlog.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer database.DisconnectMongo(mongoClient)
		chatLogs = services.NewMongoChatLogs(mongoDB)
	}

	var uploader handlers.AvatarUploader
	if cfg.CloudinaryConfigured() {
		cld, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			zlog.Warn("Failed to initialize Cloudinary; avatar uploads disabled", zap.Error(err))
		} else {
			uploader = cld
			zlog.Info("✅ Cloudinary service initialized")
		}
	} else {
		zlog.Warn("Cloudinary credentials not found; avatar uploads disabled")
	}

	router := routes.NewRouter(ctx, routes.Deps{
		Log:              zlog,
		AllowedOrigins:   cfg.AllowedOrigins,
		Production:       cfg.IsProduction(),
		TrustProxy:       cfg.TrustProxy,
		Auth:             middleware.NewAuth(provider, scopes),
		EmergencyLimiter: emergencyLimiter,
		Accounts:         accounts,
		Mood:             services.NewMoodService(),
		Emergency:        services.NewEmergencyService(scopes, hub, zlog),
		AI:               services.NewAIService(llm, chatLogs, cfg.LLMTimeout, zlog),
		Rooms:            services.NewRoomService(scopes, hub, zlog),
		Hub:              hub,
		Uploader:         uploader,
		Profiles:         services.NewProfileService(scopes),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		zlog.Info("🚀 SafeZone backend running", zap.String("port", cfg.Port), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("Shutting down...")

	// WebSocket sessions are hijacked and not tracked by Shutdown; they end
	// when the process exits.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Graceful shutdown failed", zap.Error(err))
	}
}
