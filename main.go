package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/internal/app"
	"github.com/openlis/lis-api/internal/config"
	"github.com/openlis/lis-api/internal/jobs"
	"github.com/openlis/lis-api/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.InitWithFormat(cfg.Log.Level, cfg.Log.Format)
	logger.Infof("config loaded: env=%s keycloak=%v mongo=%v redis=%v minio=%v",
		cfg.Server.Environment, cfg.Keycloak.Issuer() != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "")
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}
	defer a.Close(context.Background())
	if err := a.Bootstrap(ctx); err != nil {
		logger.Fatalf("startup: %v", err)
	}

	var sched *jobs.Scheduler
	if cfg.Jobs.Enabled {
		sched, err = jobs.NewScheduler(a.Services.Jobs, cfg.Jobs.NoShowSpec, cfg.Jobs.InventorySpec)
		if err != nil {
			logger.Fatalf("jobs: %v", err)
		}
		sched.Start()
		logger.Infof("jobs scheduled: no-show=%q inventory=%q", cfg.Jobs.NoShowSpec, cfg.Jobs.InventorySpec)
	}

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      a.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("lis-api listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
	if sched != nil {
		select {
		case <-sched.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warnf("jobs still running at shutdown")
		}
	}
}
