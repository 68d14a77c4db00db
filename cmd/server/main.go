package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/api"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/config"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/db"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/engine"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/grpcserver"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/httpapi"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/kafka"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/observability"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/session"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/workers"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	observability.SetLevel(cfg.App.LogLevel)
	logger := observability.WithFields("component", "main")
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session store and sweeper
	store := session.NewStore(session.Options{
		Shards:      cfg.Session.Shards,
		TTL:         cfg.Session.TTL,
		MaxSessions: cfg.Session.MaxSessions,
	})
	cleanup := session.NewCleanupService(store, cfg.Session.CleanupInterval)
	cleanup.Start(ctx)

	engineOpts := []engine.Option{
		engine.WithHookTimeout(cfg.Escalation.HookTimeout),
		engine.WithHookQueueSize(cfg.Escalation.QueueSize),
	}

	// Escalation audit log
	var repo *db.Repository
	if cfg.DB.DSN != "" {
		repo, err = db.NewRepository(cfg.DB.Driver, cfg.DB.DSN)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer repo.Close()
		engineOpts = append(engineOpts, engine.WithEscalationHook(repo.EscalationHook()))
	}

	// Kafka alerts and replies
	var replies, alerts *kafka.Publisher
	if cfg.Kafka.Enabled {
		alerts = kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic)
		replies = kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.ReplyTopic)
		defer alerts.Close()
		defer replies.Close()
		engineOpts = append(engineOpts, engine.WithEscalationHook(alerts.EscalationHook()))
	}

	eng := engine.NewEngine(store, engineOpts...)
	pool := workers.NewWorkerPool(cfg.Workers.Count, cfg.Workers.QueueSize)

	// gRPC
	grpcSrv := grpcserver.NewServer(grpcserver.NewConversationServer(eng, pool))
	go func() {
		logger.Info("starting gRPC server", "port", cfg.GRPC.Port)
		if err := grpcSrv.ListenAndServe(cfg.GRPC.Port); err != nil {
			log.Fatalf("gRPC server error: %v", err)
		}
	}()

	// HTTP
	routerOpts := httpapi.Options{Environment: cfg.App.Environment}
	if repo != nil {
		routerOpts.Escalations = http.HandlerFunc(api.NewHandler(repo).ListEscalations)
	}
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		defer redisClient.Close()
		routerOpts.RateLimit = httpapi.NewRateLimiter(redisClient, cfg.Redis.RateLimitQPS).Middleware()
	}
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: httpapi.NewRouter(eng, routerOpts),
	}
	go func() {
		logger.Info("starting HTTP server", "port", cfg.HTTP.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Kafka inbound
	consumerDone := make(chan struct{})
	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.InboundTopic,
			GroupID: cfg.Kafka.GroupID,
		}, eng, pool, replies)
		go func() {
			defer close(consumerDone)
			if err := consumer.Start(ctx); err != nil {
				logger.Error("consumer error", "error", err)
			}
		}()
	} else {
		close(consumerDone)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	grpcSrv.Stop()

	cancel()
	<-consumerDone
	pool.Stop()
	eng.Close()
	cleanup.Stop()

	logger.Info("shutdown complete", "sessions", store.Len())
}
