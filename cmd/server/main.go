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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/demesis221/PawRescue/internal/api"
	"github.com/demesis221/PawRescue/internal/pkg/config"
	"github.com/demesis221/PawRescue/internal/pkg/logger"
	"github.com/demesis221/PawRescue/internal/pkg/redis"
	"github.com/demesis221/PawRescue/internal/repository"
	"github.com/demesis221/PawRescue/internal/service"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading env vars from system")
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting PawRescue API")

	db, err := repository.Open(cfg.Database.URL)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer repository.Close(db)

	// Redis is optional; without it the realtime feed stays process-local
	if cfg.Redis.Addr != "" {
		if err := redis.Init(cfg); err != nil {
			zap.L().Warn("Redis initialization failed, realtime feed runs single-instance",
				zap.Error(err))
		} else {
			defer redis.Close()
		}
	}

	storage, err := service.NewDiskStorage(cfg.Storage.Dir, cfg.Storage.BaseURL)
	if err != nil {
		zap.L().Fatal("Failed to initialize storage", zap.Error(err))
	}

	events := service.NewEvents()
	defer events.Close()

	reportRepo := repository.NewReportRepo(db)
	profileRepo := repository.NewProfileRepo(db)

	deps := api.Deps{
		Auth:      service.NewAuthService(profileRepo),
		Reports:   service.NewReportService(reportRepo, storage, events, cfg.Upload.MaxSizeBytes),
		Lifecycle: service.NewLifecycleService(reportRepo, events),
		Events:    events,
		Storage:   storage,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	api.SetupRouter(r, deps)

	srv := &http.Server{
		Addr:    cfg.GetServerAddr(),
		Handler: r,
	}

	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Error("Forced shutdown", zap.Error(err))
	}
}
