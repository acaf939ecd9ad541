package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/twmb/franz-go/pkg/kgo"

	"rosterclaim/internal/claim/handler"
	"rosterclaim/internal/claim/lock"
	"rosterclaim/internal/claim/metrics"
	"rosterclaim/internal/claim/ports"
	"rosterclaim/internal/claim/resolver"
	"rosterclaim/internal/claim/resync"
	"rosterclaim/internal/claim/scheduler"
	"rosterclaim/internal/claim/service"
	"rosterclaim/internal/claim/store/shadow"
	"rosterclaim/internal/directory/store/externalid"
	"rosterclaim/internal/directory/store/membership"
	"rosterclaim/internal/directory/store/organisation"
	"rosterclaim/internal/directory/store/process"
	"rosterclaim/internal/directory/store/settings"
	"rosterclaim/internal/directory/store/user"
	"rosterclaim/internal/platform/cache"
	"rosterclaim/internal/platform/config"
	"rosterclaim/internal/platform/kafka"
	httpmetrics "rosterclaim/internal/platform/metrics"
	"rosterclaim/internal/platform/middleware"
	"rosterclaim/internal/platform/postgres"
	"rosterclaim/internal/platform/redis"
	"rosterclaim/internal/search"
	"rosterclaim/internal/telemetry"
	"rosterclaim/pkg/platform/middleware/metadata"
	"rosterclaim/pkg/platform/middleware/requesttime"
)

type app struct {
	router    chi.Router
	orgs      *resolver.OrganisationResolver
	resyncer  *resync.Resyncer
	scheduler *scheduler.Scheduler
	closers   []func()
}

const kafkaFlushTimeout = 10 * time.Second

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// wire builds the object graph. Redis and Kafka are optional: without them
// caches and locks stay in process and telemetry is only logged.
func wire(ctx context.Context, cfg config.Server, log *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = db.Close() })

	pool, err := postgres.OpenSearchPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		a.closers = append(a.closers, func() { _ = rc.Close() })
	}

	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return nil, err
	}
	if kc != nil {
		a.closers = append(a.closers, func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), kafkaFlushTimeout)
			defer cancel()
			if err := kc.Flush(flushCtx); err != nil {
				log.Warn("telemetry flush incomplete", "error", err)
			}
			kc.Close()
		})
	}

	claimMetrics := metrics.New()
	index := search.NewPostgres(pool)
	stores := service.Stores{
		Shadows:     shadow.NewPostgres(db),
		Users:       user.NewPostgres(db),
		Memberships: membership.NewPostgres(db),
		Links:       externalid.NewPostgres(db),
		Index:       index,
	}

	newCache := func(name string) ports.Cache {
		if rc != nil {
			return cache.NewRedis(rc.Client, name, cfg.Claim.CacheTTL)
		}
		return cache.NewInMemory(name, cfg.Claim.CacheTTL)
	}

	a.orgs, err = resolver.NewOrganisationResolver(index, settings.NewPostgres(db), organisation.NewPostgres(db), resolver.OrgCaches{
		Org:       newCache("org"),
		RootOrg:   newCache("root_org"),
		Custodian: newCache("custodian"),
		HashTag:   newCache("hashtag"),
	}, resolver.WithOrgLogger(log))
	if err != nil {
		return nil, err
	}
	identities, err := resolver.NewIdentityResolver(index, a.orgs, resolver.WithIdentityLogger(log))
	if err != nil {
		return nil, err
	}

	a.resyncer, err = resync.New(stores.Users, stores.Memberships, index,
		resync.WithWorkers(cfg.Claim.ResyncWorkers),
		resync.WithQueueSize(cfg.Claim.ResyncQueueSize),
		resync.WithCallTimeout(cfg.Claim.CallTimeout),
		resync.WithMetrics(claimMetrics),
		resync.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	reconciler, err := service.NewReconciler(stores, identities, a.orgs,
		service.WithTelemetry(
			newEmitter(kc, cfg.Kafka.Topic, log),
			telemetry.NewContextLookup(process.NewPostgres(db), newCache("telemetry_context")),
		),
		service.WithIndexSyncer(a.resyncer),
		service.WithMetrics(claimMetrics),
		service.WithLogger(log),
		service.WithCallTimeout(cfg.Claim.CallTimeout),
	)
	if err != nil {
		return nil, err
	}

	driver, err := service.NewDriver(stores.Shadows, reconciler, newLocker(rc, cfg, log),
		service.WithConcurrency(cfg.Claim.BatchConcurrency),
		service.WithDriverCallTimeout(cfg.Claim.CallTimeout),
		service.WithDriverMetrics(claimMetrics),
		service.WithDriverLogger(log),
	)
	if err != nil {
		return nil, err
	}

	a.scheduler, err = scheduler.New(driver, cfg.Claim.BatchInterval, scheduler.WithLogger(log))
	if err != nil {
		return nil, err
	}

	h, err := handler.New(driver,
		handler.WithHealthChecker(handler.HealthFunc(func(ctx context.Context) error {
			if err := a.orgs.Preflight(ctx); err != nil {
				return err
			}
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres ping: %w", err)
			}
			if rc != nil {
				return rc.Health(ctx)
			}
			return nil
		})),
		handler.WithBackground(ctx),
		handler.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(log, httpmetrics.New()))
	h.Register(r)
	a.router = r

	log.Info("dependencies wired",
		"redis", rc != nil,
		"kafka", kc != nil,
		"batch_interval", cfg.Claim.BatchInterval,
		"batch_concurrency", cfg.Claim.BatchConcurrency,
	)
	return a, nil
}

func newEmitter(kc *kgo.Client, topic string, log *slog.Logger) ports.TelemetryEmitter {
	if kc == nil {
		return telemetry.NewLogEmitter(log)
	}
	return telemetry.NewKafkaEmitter(kc, topic, telemetry.WithKafkaLogger(log))
}

func newLocker(rc *redis.Client, cfg config.Server, log *slog.Logger) ports.KeyLocker {
	if rc == nil {
		return lock.NewInMemory()
	}
	return lock.NewRedis(rc.Client, cfg.Claim.LockTTL, lock.WithLogger(log))
}
