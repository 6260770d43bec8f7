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
	"github.com/luzhania/E1-arquitectura-de-software/services/broker/internal/auction"
	"github.com/luzhania/E1-arquitectura-de-software/services/broker/internal/catalog"
	"github.com/luzhania/E1-arquitectura-de-software/services/broker/internal/config"
	"github.com/luzhania/E1-arquitectura-de-software/services/broker/internal/consumer"
	"github.com/luzhania/E1-arquitectura-de-software/services/broker/internal/reconcile"
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

	consumerMetrics := consumer.NewMetrics(registry)
	reconcileMetrics := reconcile.NewMetrics(registry)
	auctionMetrics := auction.NewMetrics(registry)

	ready := health.NewManager("store", "transport")

	store, err := buildStore(cfg, logger)
	if err != nil {
		logger.Error("store init failed", "error", err)
		os.Exit(1)
	}
	ready.SetComponent("store", true)

	ledger := reconcile.New(store, logging.WithComponent(logger, "reconcile"), reconcileMetrics)
	auctions := auction.NewEngine(store, cfg.Group.LocalID, logging.WithComponent(logger, "auction"), auctionMetrics)
	updater := catalog.NewUpdater(store, logging.WithComponent(logger, "catalog"))
	dispatcher := consumer.NewDispatcher(ledger, auctions, updater, logging.WithComponent(logger, "consumer"), consumerMetrics)

	client := buildTransport(cfg, logger)
	defer client.Close()

	for _, topic := range []string{cfg.Topics.Requests, cfg.Topics.Validation, cfg.Topics.Auctions, cfg.Topics.Updates} {
		client.Route(topic, dispatcher)
	}

	httpServer := buildHTTPServer(cfg, ready, registry, logger)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Info("broker http starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		logger.Info("broker subscriber starting",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Host, cfg.MQTT.Port),
			"group_id", cfg.Group.LocalID)
		if err := client.Run(runCtx); err != nil && runCtx.Err() == nil {
			logger.Error("subscriber loop error", "error", err)
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
	if cfg.Store.Driver == "memory" {
		logger.Info("using in-memory store")
		return storage.NewMemoryStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := storage.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, err
	}
	store := storage.NewMongoStore(db, logger)
	if err := store.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	logger.Info("connected to mongo", "database", cfg.Mongo.Database)
	return store, nil
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

func buildHTTPServer(cfg *config.Config, ready *health.Manager, registry *prometheus.Registry, logger *slog.Logger) *http.Server {
	router := gin.New()
	router.Use(httpmiddleware.RequestID())
	router.Use(httpmiddleware.Logger(logger))
	router.Use(httpmiddleware.Recovery(logger))

	router.GET("/healthz", health.LivenessHandler)
	router.GET("/readyz", health.ReadinessHandler(ready))
	router.GET(cfg.App.MetricsPath, gin.WrapH(metrics.Handler(registry)))

	addr := fmt.Sprintf("%s:%d", cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	return &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.App.HTTP.ReadTimeout,
		WriteTimeout: cfg.App.HTTP.WriteTimeout,
		IdleTimeout:  cfg.App.HTTP.IdleTimeout,
	}
}
