package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wisefido-vitaldrift/internal/common/logger"
	"wisefido-vitaldrift/internal/config"
	"wisefido-vitaldrift/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(2)
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-vitaldrift")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, log); err != nil {
		log.Error("Drift service exited with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

// run 创建服务并阻塞到 SIGINT/SIGTERM
func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driftService, err := service.NewDriftService(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create drift service: %w", err)
	}
	defer driftService.Stop()

	log.Info("Drift service started",
		zap.Int("device_count", len(cfg.Drift.DeviceIDs)),
		zap.Duration("poll_interval", cfg.Drift.PollInterval),
		zap.String("http_addr", cfg.HTTP.Addr),
	)

	if err := driftService.Start(ctx); err != nil {
		return err
	}

	log.Info("Drift service stopped")
	return nil
}
