package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sk-governance-api/api/swagger"
	"github.com/noah-isme/sk-governance-api/internal/app"
	"github.com/noah-isme/sk-governance-api/internal/handler"
	"github.com/noah-isme/sk-governance-api/internal/middleware"
	"github.com/noah-isme/sk-governance-api/pkg/config"
	"github.com/noah-isme/sk-governance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sk-governance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sk-governance-api/pkg/middleware/requestid"
)

// @title SK Governance API
// @version 1.0.0
// @description Term lifecycle and position capacity accounting for Sangguniang Kabataan councils
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	container, err := app.New(cfg, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	container.StartBackground(ctx)

	checks := map[string]handler.ReadinessCheck{"postgres": container.DB.PingContext}
	if container.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return container.Redis.Ping(ctx).Err() }
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(container.Metrics))

	registerRoutes(r, handlers{
		terms:      handler.NewTermHandler(container.Terms),
		statistics: handler.NewStatisticsHandler(container.Statistics),
		metrics:    handler.NewMetricsHandler(container.Metrics, checks),
	}, container.Auth, routeOptions{prefix: cfg.APIPrefix, docs: cfg.Env != config.EnvProduction})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
