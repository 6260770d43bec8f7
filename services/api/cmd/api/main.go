package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/luzhania/E1-arquitectura-de-software/internal/storage"
	"github.com/luzhania/E1-arquitectura-de-software/libs/health"
	"github.com/luzhania/E1-arquitectura-de-software/libs/httpmiddleware"
	"github.com/luzhania/E1-arquitectura-de-software/libs/logging"
	"github.com/luzhania/E1-arquitectura-de-software/libs/metrics"
	"github.com/luzhania/E1-arquitectura-de-software/libs/mqtt"
	"github.com/luzhania/E1-arquitectura-de-software/services/api/internal/config"
	"github.com/luzhania/E1-arquitectura-de-software/services/api/internal/handlers"
	"github.com/luzhania/E1-arquitectura-de-software/services/api/internal/publisher"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.App.LogLevel, cfg.App.ServiceName, cfg.App.Env)

	if cfg.App.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry, cfg.App.ServiceName)

	ready := health.NewManager("store", "transport")

	store, err := buildStore(cfg, logger)
	if err != nil {
		logger.Error("store init failed", "error", err)
		os.Exit(1)
	}
	ready.SetComponent("store", true)

	client := buildTransport(cfg, logger)
	defer client.Close()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := client.Run(runCtx); err != nil && runCtx.Err() == nil {
			logger.Error("transport loop error", "error", err)
		}
	}()

	buyPublisher := publisher.New(client, cfg.RequestsTopic, cfg.GroupID, logger)

	var jobs handlers.JobSubmitter
	if cfg.JobmasterURL != "" {
		jobs = handlers.NewHTTPJobClient(cfg.JobmasterURL)
	} else {
		logger.Warn("no jobmaster configured, gain estimation disabled")
	}

	handler := handlers.New(store, buyPublisher, jobs, cfg.CacheTTL, logger)

	router := gin.New()
	router.Use(httpmiddleware.RequestID())
	router.Use(httpmiddleware.Logger(logger))
	router.Use(httpmiddleware.Recovery(logger))

	router.GET("/healthz", health.LivenessHandler)
	router.GET("/readyz", health.ReadinessHandler(ready))
	router.GET(cfg.App.MetricsPath, gin.WrapH(metrics.Handler(registry)))

	handler.Register(router, []byte(cfg.JWTSecret))

	addr := fmt.Sprintf("%s:%d", cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.App.HTTP.ReadTimeout,
		WriteTimeout: cfg.App.HTTP.WriteTimeout,
		IdleTimeout:  cfg.App.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("api http starting", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	ready.SetComponent("transport", true)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ready.SetComponent("transport", false)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
}

func buildStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.StoreDriver == "memory" {
		logger.Info("using in-memory store")
		return storage.NewMemoryStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := storage.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to mongo", "database", cfg.Mongo.Database)
	return storage.NewMongoStore(db, logger), nil
}

func buildTransport(cfg *config.Config, logger *slog.Logger) mqtt.Client {
	if cfg.MQTT.Host == "" {
		logger.Warn("no mqtt broker configured, using noop transport")
		return mqtt.NewNoopClient(logger)
	}

	client, err := mqtt.NewClient(mqtt.Config{
		Host:          cfg.MQTT.Host,
		Port:          cfg.MQTT.Port,
		Username:      cfg.MQTT.Username,
		Password:      cfg.MQTT.Password,
		ClientID:      cfg.MQTT.ClientID,
		QoS:           byte(cfg.MQTT.QoS),
		RetryInterval: cfg.MQTT.RetryInterval,
	}, logger)
	if err != nil {
		logger.Error("mqtt client init failed, using noop transport", "error", err)
		return mqtt.NewNoopClient(logger)
	}
	return client
}
