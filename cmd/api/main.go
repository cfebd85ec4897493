package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/rafaelmorch/platform-sports/internal/api"
	"github.com/rafaelmorch/platform-sports/internal/auth"
	"github.com/rafaelmorch/platform-sports/internal/config"
	"github.com/rafaelmorch/platform-sports/internal/domain"
	"github.com/rafaelmorch/platform-sports/internal/logging"
	"github.com/rafaelmorch/platform-sports/internal/outbox"
	"github.com/rafaelmorch/platform-sports/internal/persistence/postgres"
	"github.com/rafaelmorch/platform-sports/internal/profile"
	"github.com/rafaelmorch/platform-sports/internal/storage"
	httptransport "github.com/rafaelmorch/platform-sports/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.Init(cfg.Mode, cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	activities := postgres.NewActivityRepository(pool)
	entries := postgres.NewAttendanceRepository(pool)
	messages := postgres.NewChatRepository(pool)

	var profiles profile.Store = postgres.NewProfileDirectory(pool)
	if cfg.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		profiles = profile.NewCachedDirectory(client, profiles, cfg.Redis.TTL, logging.New("profile"))
		logger.Info("profile cache enabled", "addr", cfg.Redis.Address)
	}

	var images domain.ImageStore
	if cfg.S3.Bucket != "" {
		images = storage.NewS3ImageStore(storage.NewS3Client(cfg.S3), cfg.S3)
		logger.Info("image storage enabled", "bucket", cfg.S3.Bucket)
	}

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()
	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logging.New("outbox"))
	go dispatcher.Start(ctx)

	services := api.Services{
		Activities: domain.NewActivityService(activities, entries, images, domain.WithLogger(logging.New("activities"))),
		Attendance: domain.NewAttendanceService(activities, entries, profiles, domain.WithLogger(logging.New("attendance"))),
		Chat:       domain.NewChatService(activities, messages, profiles, domain.WithLogger(logging.New("chat"))),
	}
	handler := api.NewHandler(services,
		api.WithProfileRecorder(profiles),
		api.WithImageMaxBytes(cfg.ImageMaxBytes),
		api.WithLogger(logging.New("api")),
	)
	router := api.NewRouter(handler, api.RouterConfig{
		Auth:              auth.Config{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            logging.New("http"),
	})

	apiServer := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), router)
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.MetricsAddress), metricsMux)

	var wg sync.WaitGroup
	for _, srv := range []*http.Server{apiServer, metricsServer} {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := httptransport.Serve(ctx, srv, 15*time.Second, logger); err != nil {
				logger.Error("http server failed", "addr", srv.Addr, "error", err)
				stop()
			}
		}(srv)
	}

	<-ctx.Done()
	logger.Info("shutdown requested")
	wg.Wait()
	dispatcher.Wait()
}
