package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"CogitoRadio/config"
	"CogitoRadio/internal/cache"
	"CogitoRadio/internal/queue"
	"CogitoRadio/internal/schedule"
	"CogitoRadio/internal/service"
	"CogitoRadio/pkg/logger"
	"CogitoRadio/pkg/metrics"
	otelpkg "CogitoRadio/pkg/otel"
	"CogitoRadio/pkg/snowflake"
	"CogitoRadio/storage"
)

const serviceVersion = "1.0.0"

func main() {
	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Scanner received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage for scanner", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake for scanner", zap.Error(err))
	}

	shutdownOTel, err := otelpkg.InitOpenTelemetry(ctx, otelpkg.Config{
		ServiceName:    config.Cfg.ServiceName + "-scanner",
		ServiceVersion: serviceVersion,
		Environment:    config.Cfg.Environment,
		OTLPEndpoint:   config.Cfg.OTLPEndpoint,
		SampleRatio:    config.Cfg.OTelSampleRatio,
	})
	if err != nil {
		logger.Logger.Warn("Failed to initialize OpenTelemetry, telemetry disabled", zap.Error(err))
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOTel(shutdownCtx); err != nil {
				logger.Logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
			}
		}()
	}

	if err := metrics.InitMetrics(); err != nil {
		logger.Logger.Warn("Failed to initialize domain metrics", zap.Error(err))
	}

	logger.Logger.Info("Scanner service starting",
		zap.String("service", config.Cfg.ServiceName+"-scanner"),
		zap.String("environment", config.Cfg.Environment),
	)

	interval := time.Duration(config.Cfg.ScanIntervalSeconds) * time.Second
	scanner := schedule.NewReminderScanner(
		service.Reminders(),
		queue.NewProducer(),
		cache.RedisLocker{},
		schedule.WithLookahead(time.Duration(config.Cfg.ScanLookaheadSeconds)*time.Second),
		schedule.WithEscalateAfter(time.Duration(config.Cfg.EscalationAfterMinutes)*time.Minute),
	)

	scanner.Run(ctx, interval)

	logger.Logger.Info("Scanner service shutting down gracefully")
}
