package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"heartrisk/deployment"
	qhttp "heartrisk/http"
	"heartrisk/logging"
	"heartrisk/monitoring"
	"heartrisk/predict"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the deployment and serve the prediction API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Load config
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// 2. Load model and metadata; any missing artifact aborts start
	artifacts, err := deployment.Load(cfg.Deployment.Dir, deploymentFiles(cfg))
	if err != nil {
		logger.Error("failed to load deployment", zap.String("dir", cfg.Deployment.Dir), zap.Error(err))
		return err
	}
	logger.Info("deployment loaded",
		zap.String("model", artifacts.ModelPath),
		zap.Int("features", len(artifacts.Features)),
		zap.Strings("classes", artifacts.Classes))

	service, err := predict.NewService(artifacts, predict.Options{
		BooleanFields: booleanFields(cfg),
		CacheSize:     *cfg.API.CacheSize,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Deployment.Watch {
		go func() {
			if err := deployment.Watch(ctx, artifacts, logger); err != nil {
				logger.Warn("deployment watcher stopped", zap.Error(err))
			}
		}()
	}

	// 3. Start HTTP server
	metrics := monitoring.NewMetricsCollector()
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		Variant:        cfg.API.Variant,
	}, service, metrics, logger)

	errs := make(chan error, 1)
	go func() {
		errs <- server.Start()
	}()

	// 4. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errs:
		return err
	case <-quit:
	}
	logger.Info("shutting down",
		zap.String("addr", server.Addr()),
		zap.Float64("validation_failures", metrics.Counter("prediction_failures_total", map[string]string{"kind": "validation"})),
		zap.Float64("inference_failures", metrics.Counter("prediction_failures_total", map[string]string{"kind": "inference"})))

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}
	logger.Info("exiting")
	return nil
}
