package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/assetgate/internal/asset"
	"github.com/abduss/assetgate/internal/config"
	"github.com/abduss/assetgate/internal/logger"
	"github.com/abduss/assetgate/internal/metrics"
	"github.com/abduss/assetgate/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.Init()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, err := asset.Open(ctx, cfg)
	if err != nil {
		log.Fatal("build asset service", zap.Error(err))
	}
	if err := service.Ready(); err != nil {
		log.Warn("content store is not ready, uploads will be refused", zap.String("backend", service.Backend()), zap.Error(err))
	}

	metrics.InitMetrics()
	gin.SetMode(gin.ReleaseMode)
	router := server.NewRouter(server.Dependencies{
		Config:       cfg,
		AssetService: service,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("asset gate listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("backend", service.Backend()),
			zap.String("naming", cfg.Store.Naming),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
