package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"chainsense/internal/audit"
	"chainsense/internal/consistency"
	constore "chainsense/internal/consistency/store"
	"chainsense/internal/geofence"
	"chainsense/internal/milestone"
	"chainsense/internal/pipeline"
	"chainsense/internal/platform/config"
	"chainsense/internal/platform/httpserver"
	"chainsense/internal/platform/kafka"
	"chainsense/internal/platform/logger"
	platformredis "chainsense/internal/platform/redis"
	"chainsense/internal/token"
	tokenstore "chainsense/internal/token/store"
	httptransport "chainsense/internal/transport/http"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal services; everything here is assembly.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("chainsense exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres backs the token registry and the audit outbox. Without a DSN
	// everything runs in process, which is enough for local development.
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Redis shares last-record state across instances; the breaker drops to
	// in-process state during an outage rather than stalling ingestion.
	var lastRecords constore.LastRecordStore = constore.NewInMemoryLastRecordStore()
	if redisClient != nil {
		lastRecords = constore.NewFallbackLastRecordStore(
			constore.NewRedisLastRecordStore(redisClient.Client),
			constore.NewInMemoryLastRecordStore(),
			constore.WithFallbackLogger(log),
		)
	}

	var registry tokenstore.Store = tokenstore.NewInMemoryStore()
	if db != nil {
		registry = tokenstore.NewPostgresStore(db)
	}

	var auditStore audit.Store = audit.NewInMemoryStore()
	if db != nil {
		auditStore = audit.NewPostgresStore(db)
	}
	auditMetrics := audit.NewMetrics()
	publisher := audit.NewPublisher(auditStore,
		audit.WithLogger(log),
		audit.WithMetrics(auditMetrics),
	)

	svc := pipeline.New(
		consistency.NewEngine(lastRecords, consistency.DefaultConfig()),
		geofence.NewEngine(geofence.NewInMemoryMembershipStore()),
		milestone.NewBuilder(),
		registry,
		token.NewSigner([]byte(cfg.TokenSecret)),
		pipeline.WithAuditPublisher(publisher),
		pipeline.WithMetrics(pipeline.NewMetrics()),
		pipeline.WithLogger(log),
	)

	handler := httptransport.NewHandler(svc, log)
	router := httptransport.NewRouter(handler, log)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return publisher.Run(ctx)
	})

	// The relay drains the Postgres outbox into Kafka. It needs both; with
	// either missing, audit events stay in the store they landed in.
	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return err
	}
	if producer != nil && db != nil {
		defer producer.Close()
		relay := audit.NewOutboxRelay(db, producer, log, audit.WithRelayMetrics(auditMetrics))
		g.Go(func() error {
			return relay.Run(ctx)
		})
	}

	g.Go(func() error {
		log.Info("starting chainsense", "addr", cfg.Addr,
			"postgres", db != nil, "redis", redisClient != nil, "kafka", producer != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Workers return context.Canceled on an orderly SIGTERM.
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
