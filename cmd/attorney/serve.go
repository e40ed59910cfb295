package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/attorney/internal/activity"
	"github.com/gosuda/attorney/internal/agent"
	"github.com/gosuda/attorney/internal/api/ws"
	"github.com/gosuda/attorney/internal/audit"
	"github.com/gosuda/attorney/internal/config"
	"github.com/gosuda/attorney/internal/directory"
	"github.com/gosuda/attorney/internal/document"
	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/flow"
	"github.com/gosuda/attorney/internal/handoff"
	"github.com/gosuda/attorney/internal/metrics"
	"github.com/gosuda/attorney/internal/server"
	"github.com/gosuda/attorney/internal/store/memory"
	"github.com/gosuda/attorney/internal/store/postgres"
	redisstore "github.com/gosuda/attorney/internal/store/redis"
)

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

type stores struct {
	documents     domain.DocumentStore
	threads       domain.ThreadRepository
	activity      domain.ActivityRepository
	acquaintances domain.AcquaintanceDirectory
	close         func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Memory() {
		return &stores{
			documents:     memory.NewDocumentStore(),
			threads:       memory.NewThreadRepo(),
			activity:      memory.NewActivityRepo(),
			acquaintances: memory.NewDirectory(),
			close:         func() {},
		}, nil
	}

	// Bounds checked by config.validate.
	store, err := postgres.New(ctx, cfg.Database.DSN, int32(cfg.Database.MaxConns)) //nolint:gosec // G115
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return &stores{
		documents:     store.Documents(),
		threads:       store.Threads(),
		activity:      store.Activity(),
		acquaintances: store.Acquaintances(),
		close:         store.Close,
	}, nil
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	// Redis carries thread events and ownership; without it both stay local.
	var (
		events      ws.Subscriber
		broadcaster activity.Broadcaster
		owners      handoff.OwnershipStore = handoff.NewMemoryOwnership()
		handoffOpts                        = []handoff.Option{handoff.WithMetrics(m)}
	)
	if cfg.Redis.Addr != "" {
		pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer pubsub.Close()

		events = pubsub
		broadcaster = pubsub
		owners = redisstore.NewOwnershipStore(pubsub.Client(), cfg.Redis.OwnershipTTL)
		handoffOpts = append(handoffOpts, handoff.WithBroadcaster(pubsub))
	} else {
		log.Warn().Msg("ATTORNEY_REDIS_ADDR is not set; thread streams are disabled")
	}

	acquaintances := st.acquaintances
	if cfg.Directory.CacheTTL > 0 {
		acquaintances = directory.NewCached(acquaintances, cfg.Directory.CacheTTL)
	}

	publisher := activity.NewPublisher(st.activity, broadcaster)
	processor := flow.NewProcessor(
		document.NewService(st.documents, acquaintances),
		audit.NewEngine(),
		flow.WithValidationTimeout(cfg.Flow.ValidationTimeout),
		flow.WithActivity(publisher),
		flow.WithProcessorMetrics(m),
	)
	manager := flow.NewManager(processor,
		flow.WithInboxLimit(cfg.Flow.InboxLimit),
		flow.WithRequestTimeout(cfg.Flow.RequestTimeout),
		flow.WithMetrics(m),
	)
	defer manager.Shutdown()

	coordinator := handoff.NewCoordinator(st.threads, owners, handoffOpts...)
	agents := agent.DefaultRegistry()

	srv := server.New(ctx, cfg, server.Deps{
		Requester: manager,
		Threads:   coordinator,
		Activity:  publisher,
		Directory: acquaintances,
		Agents:    agents,
		Sessions:  agent.NewSessions(agents, manager, acquaintances, coordinator, agent.DefaultSessionTTL),
		Events:    events,
		Gatherer:  reg,
	})

	// Start server in background goroutine.
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Bool("memory", cfg.Memory()).Msg("starting server")
		errCh <- srv.Start(ctx)
	}()

	// Block until shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	log.Info().Msg("stopped")
	return nil
}
