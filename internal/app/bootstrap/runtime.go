package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/adapters/cache"
	eventadapter "github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/adapters/events"
	grpcadapter "github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/adapters/grpc"
	httpadapter "github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/adapters/http"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/adapters/memory"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/adapters/metrics"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/application"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
	"google.golang.org/grpc"
)

type worker interface {
	Run(ctx context.Context) error
}

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	service    *application.Service
	httpServer *http.Server
	grpcServer *grpc.Server
	workers    []worker
	closers    []func() error
}

// NewRuntime wires adapters from configuration: postgres, redis and kafka
// when their endpoints are configured, in-process adapters otherwise.
func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	rt := &Runtime{cfg: cfg, logger: logger}
	deps := application.Dependencies{Logger: logger}
	prom := metrics.NewPrometheus()
	deps.Metrics = prom

	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := postgres.RunMigrations(ctx, db); err != nil {
				return nil, err
			}
		}
		if sqlDB, err := db.DB(); err == nil {
			rt.closers = append(rt.closers, sqlDB.Close)
		}
		deps.Store = postgres.NewStore(db)
		deps.Idempotency = postgres.NewIdempotencyRepository(db)
		deps.EventDedup = postgres.NewEventDedupRepository(db)
	} else {
		logger.Warn("no database configured, using in-memory store", "module", "bootstrap", "layer", "runtime", "operation", "new_runtime", "outcome", "degraded")
		deps.Store = memory.NewStore()
		deps.Idempotency = memory.NewIdempotencyRepository()
		deps.EventDedup = memory.NewEventDedupRepository()
	}

	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, client.Close)
		deps.Dashboards = cache.NewRedisDashboardCache(client)
		deps.Leaderboard = cache.NewRedisLeaderboard(client)
	} else {
		deps.Dashboards = cache.NewMemoryDashboardCache()
		deps.Leaderboard = cache.NewMemoryLeaderboard()
	}

	var (
		consumer eventadapter.Consumer
		dlq      ports.DLQPublisher
	)
	if len(cfg.KafkaBrokers) > 0 {
		pub, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.TopicByEvent, cfg.DLQTopic)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pub.Close)
		kc, err := eventadapter.NewKafkaConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.InputTopics)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, kc.Close)
		deps.DomainEvents, deps.Analytics, dlq = pub, pub, pub
		consumer = kc
	} else {
		pub := eventadapter.NewLoggingPublisher(logger)
		deps.DomainEvents, deps.Analytics, dlq = pub, pub, pub
		consumer = eventadapter.NewNoopConsumer()
	}
	deps.DLQ = dlq

	deps.Config = application.Config{
		ServiceName:          cfg.ServiceID,
		PublicBaseURL:        cfg.PublicBaseURL,
		Tiers:                cfg.Tiers,
		Milestones:           cfg.Milestones,
		DefaultMinimumPayout: cfg.DefaultMinimumPayout,
		MinimumPayoutFloor:   cfg.MinimumPayoutFloor,
		DefaultCookieDays:    cfg.DefaultCookieDays,
		ReferralGracePeriod:  cfg.ReferralGracePeriod,
		OngoingRevenueShare:  cfg.OngoingRevenueShare,
		DashboardCacheTTL:    cfg.DashboardCacheTTL,
		LeaderboardSize:      cfg.LeaderboardSize,
		IdempotencyTTL:       cfg.IdempotencyTTL,
		EventDedupTTL:        cfg.EventDedupTTL,
		OutboxFlushBatchSize: cfg.OutboxFlushBatchSize,
		OutboxMaxAttempts:    cfg.OutboxMaxAttempts,
		DLQTopic:             cfg.DLQTopic,
		ExpiryBatchSize:      cfg.ExpiryBatchSize,
	}
	svc := application.NewService(deps)
	rt.service = svc

	handler := httpadapter.NewHandler(svc, logger)
	router := httpadapter.NewRouter(handler, httpadapter.RouterOptions{
		Auth:       httpadapter.NewAuthenticator(cfg.JWTSecret),
		Ready:      svc.Ready,
		Metrics:    prom.Handler(),
		Observer:   prom,
		ClickRate:  cfg.ClickRatePerSecond,
		ClickBurst: cfg.ClickBurst,
	})
	rt.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	rt.grpcServer = grpc.NewServer()
	grpcadapter.Register(rt.grpcServer, grpcadapter.NewPartnerInternalServer(svc))

	rt.workers = []worker{
		eventadapter.NewOutboxWorker(logger, svc, cfg.OutboxFlushInterval),
		eventadapter.NewConsumerWorker(logger, consumer, svc, dlq, cfg.ConsumerPollInterval),
		eventadapter.NewExpiryWorker(logger, svc, cfg.ExpiryInterval),
	}
	return rt, nil
}

func (r *Runtime) Service() *application.Service { return r.service }

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.close()
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		return err
	}
	errCh := make(chan error, 3)
	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	if r.cfg.DatabaseURL == "" {
		// The in-memory store is private to this process, so its workers
		// must run here too.
		go func() {
			if err := r.runWorkers(ctx); err != nil {
				errCh <- err
			}
		}()
	}
	r.logger.InfoContext(ctx, "api started", "module", "bootstrap", "layer", "runtime", "operation", "run_api", "outcome", "success", "http_port", r.cfg.HTTPPort, "grpc_port", r.cfg.GRPCPort)
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "module", "bootstrap", "layer", "runtime", "operation", "run_api", "outcome", "failure", "error", runErr)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	return runErr
}

// RunWorker runs the outbox flusher, the input consumer and the expiry
// sweep until the context ends or one of them fails.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.close()
	return r.runWorkers(ctx)
}

func (r *Runtime) runWorkers(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(r.workers))
	for _, w := range r.workers {
		wg.Add(1)
		go func(w worker) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}(w)
	}
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		cancel()
	}
	wg.Wait()
	return runErr
}

func (r *Runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Warn("close failed", "module", "bootstrap", "layer", "runtime", "operation", "close", "outcome", "failure", "error", err)
		}
	}
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
