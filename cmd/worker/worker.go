package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"CogitoRadio/config"
	"CogitoRadio/internal/queue"
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

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Worker received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	shutdownOTel, err := otelpkg.InitOpenTelemetry(ctx, otelpkg.Config{
		ServiceName:    config.Cfg.ServiceName + "-worker",
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

	logger.Logger.Info("Worker service starting",
		zap.String("service", config.Cfg.ServiceName+"-worker"),
		zap.String("environment", config.Cfg.Environment),
	)

	// 升级消息消费者，断线后重连
	for {
		if err := queue.StartEscalationConsumer(ctx, service.Alerts()); err != nil {
			logger.Logger.Error("Escalation consumer stopped", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			logger.Logger.Info("Worker service shutting down gracefully")
			return
		case <-time.After(5 * time.Second):
		}
	}
}
