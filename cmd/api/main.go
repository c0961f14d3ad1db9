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

	"commodity-price-portal/internal/app"
	"commodity-price-portal/internal/config"
	"commodity-price-portal/internal/handlers"
	"commodity-price-portal/internal/logger"
	"commodity-price-portal/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	// Load configuration
	configPath := getEnv("CONFIG_PATH", "/app/config/config.yaml")
	appConfig, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config from %s: %v. Using defaults.", configPath, err)
		appConfig = config.DefaultConfig()
	}
	appConfig.ApplyEnv()

	zl, err := logger.New(appConfig.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()
	zl.Info("Configuration loaded", zap.String("path", configPath), zap.String("database", appConfig.Database.Type))

	a, err := app.New(appConfig, zl)
	if err != nil {
		zl.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	var searcher handlers.Searcher
	if a.Search != nil {
		if err := a.Search.InitIndex(); err != nil {
			zl.Warn("Failed to initialize search index", zap.Error(err))
		}
		searcher = a.Search
	}

	if err := a.Scheduler.Start(); err != nil {
		zl.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer a.Scheduler.Stop()

	rl := appConfig.Server.RateLimit
	limiter := ratelimit.NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.RequestsPerDay, rl.Enabled)
	zl.Info("Rate limiter initialized",
		zap.Int("per_minute", rl.RequestsPerMinute),
		zap.Int("per_hour", rl.RequestsPerHour),
		zap.Int("per_day", rl.RequestsPerDay),
		zap.Bool("enabled", rl.Enabled),
	)

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.RouterOptions{
		Prices: handlers.NewPriceHandler(a.Gateway, a.Entitlements, a.Normalizer, searcher, appConfig.Location(), zl),
		Admin: handlers.NewAdminHandler(a.Store, a.Scheduler, limiter,
			appConfig.Scheduler.GetJobTimeout(), zl),
		Limiter:     limiter,
		Gatherer:    a.Registry,
		CORSOrigins: appConfig.Server.CORSOrigins,
		Ping: func() error {
			sqlDB, err := a.DB.DB().DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		},
		Log: zl,
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("Server shutdown failed", zap.Error(err))
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
