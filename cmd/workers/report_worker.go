package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/mrv/mrv-backend/internal/app"
	"carbon-scribe/mrv/mrv-backend/internal/config"
	"carbon-scribe/mrv/mrv-backend/internal/reports/scheduler"
	"carbon-scribe/mrv/mrv-backend/pkg/logging"
)

// The report worker reassesses every farm in the farm store on a cron
// schedule and pushes the refreshed reports through the configured sinks.
func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	once := flag.Bool("once", false, "run a single recalculation pass and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger, *once); err != nil {
		logger.Fatal("Report worker failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.Bootstrap(ctx, cfg, logger, app.Options{FileOutput: true})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := components.Close(closeCtx); err != nil {
			logger.Error("Failed to close backends", zap.Error(err))
		}
	}()

	if components.Farms == nil {
		return fmt.Errorf("report worker needs a farm store: set MONGO_URI")
	}

	schedulerCfg := scheduler.DefaultConfig()
	schedulerCfg.Schedule = cfg.Processing.RecalculationSchedule
	schedulerCfg.Workers = cfg.Processing.Workers

	manager, err := scheduler.NewManager(components.Farms, components.CreditsService(), logger, schedulerCfg)
	if err != nil {
		return err
	}

	if once {
		_, err := manager.RunOnce(ctx)
		return err
	}

	if err := manager.Start(ctx); err != nil {
		return err
	}

	var srv *http.Server
	if cfg.Processing.StatusAddr != "" {
		srv = statusServer(cfg.Processing.StatusAddr, manager)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Status server failed", zap.Error(err))
			}
		}()
		logger.Info("Status server started", zap.String("addr", srv.Addr))
	}

	<-ctx.Done()
	logger.Info("Report worker shutting down")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Status server forced to shutdown", zap.Error(err))
		}
	}
	manager.Stop()
	return nil
}

// statusServer serves the manager's /status and /health routes
func statusServer(addr string, manager *scheduler.Manager) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	manager.RegisterRoutes(router)

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
