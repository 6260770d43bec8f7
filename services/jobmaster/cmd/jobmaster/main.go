package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/luzhania/E1-arquitectura-de-software/internal/storage"
	"github.com/luzhania/E1-arquitectura-de-software/libs/health"
	"github.com/luzhania/E1-arquitectura-de-software/libs/httpmiddleware"
	"github.com/luzhania/E1-arquitectura-de-software/libs/logging"
	"github.com/luzhania/E1-arquitectura-de-software/libs/metrics"
	"github.com/luzhania/E1-arquitectura-de-software/services/jobmaster/internal/config"
	"github.com/luzhania/E1-arquitectura-de-software/services/jobmaster/internal/handlers"
	"github.com/luzhania/E1-arquitectura-de-software/services/jobmaster/internal/queue"
	"github.com/luzhania/E1-arquitectura-de-software/services/jobmaster/internal/worker"
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
	workerMetrics := worker.NewMetrics(registry)

	ready := health.NewManager("store", "queue")

	store, err := buildStore(cfg, logger)
	if err != nil {
		logger.Error("store init failed", "error", err)
		os.Exit(1)
	}
	ready.SetComponent("store", true)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	q := queue.NewRedisQueue(rdb, cfg.QueueKey, cfg.ResultTTL)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := q.Ping(pingCtx); err != nil {
		logger.Error("redis unreachable", "addr", cfg.Redis.Addr, "error", err)
		pingCancel()
		os.Exit(1)
	}
	pingCancel()
	logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	ready.SetComponent("queue", true)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		w := worker.New(q, store, cfg.Drift, logging.WithComponent(logger, "worker"), workerMetrics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(runCtx)
		}()
	}

	handler := handlers.New(q, logger)

	router := gin.New()
	router.Use(httpmiddleware.RequestID())
	router.Use(httpmiddleware.Logger(logger))
	router.Use(httpmiddleware.Recovery(logger))

	router.GET("/healthz", health.LivenessHandler)
	router.GET("/readyz", health.ReadinessHandler(ready))
	router.GET(cfg.App.MetricsPath, gin.WrapH(metrics.Handler(registry)))

	handler.Register(router)

	addr := fmt.Sprintf("%s:%d", cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.App.HTTP.ReadTimeout,
		WriteTimeout: cfg.App.HTTP.WriteTimeout,
		IdleTimeout:  cfg.App.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("jobmaster http starting", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ready.SetComponent("queue", false)
	cancel()
	wg.Wait()

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
