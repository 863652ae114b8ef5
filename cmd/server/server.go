package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"CogitoRadio/config"
	"CogitoRadio/internal/broadcast"
	"CogitoRadio/internal/middleware"
	"CogitoRadio/internal/queue"
	"CogitoRadio/internal/router"
	"CogitoRadio/internal/service"
	"CogitoRadio/internal/session"
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
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	// 初始化存储层，记得关闭外部连接
	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	shutdownOTel, err := otelpkg.InitOpenTelemetry(ctx, otelpkg.Config{
		ServiceName:    config.Cfg.ServiceName,
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
	if err := middleware.InitMetrics(otel.Meter("cogito-server")); err != nil {
		logger.Logger.Warn("Failed to initialize HTTP metrics", zap.Error(err))
	}

	// 进程内扇出：MQ 消费者 -> Hub -> 各设备会话
	hub := broadcast.NewHub()
	sessions := session.NewManager(hub, service.Reminders(),
		session.WithDuckLevel(config.Cfg.DuckLevel),
		session.WithDuckTransition(time.Duration(config.Cfg.DuckTransitionMillis)*time.Millisecond),
		session.WithManagerRepeatInterval(time.Duration(config.Cfg.RepeatAnnounceSeconds)*time.Second),
		session.WithLatencyWindowSize(config.Cfg.AckWindowSize),
	)

	// 触发消息消费者，断线后由外层循环重连
	go func() {
		for {
			if err := queue.StartTriggerConsumer(ctx, hub); err != nil {
				logger.Logger.Error("Trigger consumer stopped", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()

	logger.Logger.Info("Server starting",
		zap.String("service", config.Cfg.ServiceName),
		zap.String("port", config.Cfg.ServerPort),
		zap.String("environment", config.Cfg.Environment),
	)

	addr := net.JoinHostPort(config.Cfg.ServerHost, config.Cfg.ServerPort)
	tracer, tracingMiddleware := middleware.NewServerTracerConfig()
	h := server.Default(server.WithHostPorts(addr), tracer)
	h.Use(tracingMiddleware)

	router.Register(h, sessions)

	// 优雅关闭：在单独的 goroutine 中监听关闭信号并调用 Shutdown
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	logger.Logger.Info("HTTP server listening", zap.String("addr", addr))

	h.Spin()

	logger.Logger.Info("Server shutting down gracefully")
}
