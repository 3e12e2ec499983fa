package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"battdevy/internal/auth"
	"battdevy/internal/config"
	"battdevy/internal/logging"
	"battdevy/internal/media"
	"battdevy/internal/reminder"
	"battdevy/internal/server"
	"battdevy/pkg/database"
	"battdevy/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("❌ Logging: %v", err)
	}
	defer logFile.Close()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, dialect, err := database.Open(cfg.Database.URL)
	if err != nil {
		log.Fatalf("❌ Database: %v", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db, dialect); err != nil {
		log.Fatalf("❌ Migrations: %v", err)
	}

	redisClient := connectRedis(ctx, cfg.Redis.URL)
	if redisClient != nil {
		defer redisClient.Close()
	}

	mediaService := setupMedia(ctx, cfg, redisClient)

	router := server.NewRouter(server.Deps{
		DB:    db,
		Redis: redisClient,
		Media: mediaService,
		Auth: auth.Config{
			Secret:     cfg.JWT.Secret,
			Expiry:     cfg.JWTExpiry(),
			DemoUserID: cfg.DemoUserID(),
		},
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.AllowedOrigins(),
			AllowAll:       cfg.CORS.AllowAll,
		},
		RateLimitPerMinute: cfg.RateLimit.PerMinute,
	})

	scheduler := setupReminders(cfg, db, redisClient)
	if scheduler != nil {
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("🚀 BattDevy API listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("❌ HTTP server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("❌ Graceful shutdown failed: %v", err)
		os.Exit(1)
	}
	log.Info("✅ Server stopped")
}

// connectRedis returns nil when no URL is configured or Redis is down; rate
// limiting then fails open and caches stay in memory.
func connectRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		log.Info("ℹ️ REDIS_URL not set, running without Redis")
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Warnf("⚠️ Invalid REDIS_URL, running without Redis: %v", err)
		return nil
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warnf("⚠️ Redis unavailable, running without it: %v", err)
		_ = client.Close()
		return nil
	}
	log.Info("✅ Redis connected")
	return client
}

func setupMedia(ctx context.Context, cfg config.Config, redisClient *redis.Client) *media.Service {
	if !cfg.StorageEnabled() {
		log.Warn("⚠️ S3 storage not configured, image uploads disabled")
		return nil
	}
	store, err := media.NewR2Client(ctx, media.R2Config{
		Endpoint:        cfg.S3.Endpoint,
		Region:          cfg.S3.Region,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
	if err != nil {
		log.Warnf("⚠️ Storage client failed, image uploads disabled: %v", err)
		return nil
	}

	var cache media.URLCache
	if redisClient != nil {
		cache = media.NewRedisCache(redisClient)
	} else {
		memory := media.NewMemoryCache()
		go memory.RunCleanup(ctx, 10*time.Minute)
		cache = memory
	}
	log.Info("✅ Image storage ready")
	return media.NewService(store, cache, cfg.SignedURLTTL())
}

func setupReminders(cfg config.Config, db *gorm.DB, redisClient *redis.Client) *reminder.Scheduler {
	if cfg.Telegram.BotToken == "" {
		log.Info("ℹ️ TELEGRAM_BOT_TOKEN not set, reminders disabled")
		return nil
	}
	notifier, err := reminder.NewTelegramNotifier(cfg.Telegram.BotToken)
	if err != nil {
		log.Warnf("⚠️ Reminders disabled: %v", err)
		return nil
	}

	var dedupe reminder.Deduper
	if redisClient != nil {
		dedupe = reminder.NewRedisDeduper(redisClient)
	} else {
		dedupe = reminder.NewMemoryDeduper()
	}
	return reminder.NewScheduler(db, notifier, dedupe, reminder.Config{
		Interval:  cfg.ReminderInterval(),
		Lookahead: cfg.ReminderLookahead(),
	})
}
