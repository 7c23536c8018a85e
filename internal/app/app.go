// Package app wires the salesdesk server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/salesdesk/internal/backend"
	"github.com/xenking/salesdesk/internal/domain/product"
	"github.com/xenking/salesdesk/internal/domain/sale"
	"github.com/xenking/salesdesk/internal/handler"
	"github.com/xenking/salesdesk/internal/session"
	"github.com/xenking/salesdesk/internal/storage/file"
	"github.com/xenking/salesdesk/internal/storage/postgres"
	"github.com/xenking/salesdesk/pkg/health"
	"github.com/xenking/salesdesk/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the builder
// sweeper, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("catalog", cfg.Catalog.Source),
		zap.String("session_store", cfg.Session.Store),
		zap.Stringer("tax_percent", cfg.Tax()),
	)

	s, err := newServer(ctx, cfg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}
	defer s.close()
	if !s.desks.Enabled() {
		lg.Warn("No desk keys configured, builder API is open")
	}

	s.health.Start(ctx, 10*time.Second)
	s.health.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Backend.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           s.handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.registry.Run(gctx, cfg.Builders.SweepInterval, cfg.Builders.Idle)
	})
	g.Go(func() error {
		// Graceful shutdown: stop advertising readiness, drain, then stop.
		<-gctx.Done()
		s.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server",
			zap.Duration("timeout", cfg.Graceful.ShutdownTimeout),
			zap.Int("open_builders", s.registry.Len()),
		)
		s.health.Stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}

// server is the wired application without its listener.
type server struct {
	handler  http.Handler
	registry *handler.Registry
	health   *health.Health
	desks    *handler.DeskAuth
	closers  []func()
}

func (s *server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newServer(ctx context.Context, cfg *Config, tp trace.TracerProvider, mp metric.MeterProvider) (_ *server, rerr error) {
	s := &server{health: health.New()}
	defer func() {
		if rerr != nil {
			s.close()
		}
	}()

	s.health.Add(health.Check{
		Name:    "goroutines",
		Kind:    health.Liveness,
		Timeout: time.Second,
		Func:    health.GoroutineCountCheck(10000),
	})

	// Back office, authenticated through the session manager.
	client, err := backend.New(cfg.Backend.URL, backend.Options{
		Timeout:        cfg.Backend.Timeout,
		TracerProvider: tp,
		MeterProvider:  mp,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create back-office client")
	}
	s.health.Add(health.Check{
		Name:    "backend",
		Kind:    health.Readiness,
		Timeout: 5 * time.Second,
		Func:    health.PingCheck(client),
	})

	store, closeStore := openSessionStore(cfg.Session, s.health)
	s.closers = append(s.closers, closeStore)

	sessions := session.NewManager(store, client, session.Credentials{
		Email:    cfg.Backend.Email,
		Password: cfg.Backend.Password,
	})
	if _, err := sessions.Load(ctx); err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	api := client.WithTokens(sessions)

	products, closeCatalog, err := openCatalog(ctx, cfg.Catalog, api, s.health)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closeCatalog)

	// Builders.
	saleCfg := sale.Config{TaxPercent: cfg.Tax()}
	customers := api.Customers()
	open := func(ctx context.Context) (*sale.Builder, error) {
		return sale.Open(ctx, saleCfg, products, customers, api)
	}
	s.registry = handler.NewRegistry(cfg.Builders.Max)
	h, err := handler.New(open, api.Sales(), s.registry, mp)
	if err != nil {
		return nil, errors.Wrap(err, "create handler")
	}
	s.desks = handler.NewDeskAuth(cfg.Desks.Pepper, cfg.Desks.Keys)

	r := chi.NewRouter()
	r.Get("/livez", s.health.LiveEndpoint)
	r.Get("/readyz", s.health.ReadyEndpoint)
	r.With(s.desks.Middleware).Mount("/api", h.Routes())

	s.handler = httpmiddleware.Wrap(
		otelhttp.NewHandler(r, "salesdesk",
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
		),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", handler.DeskKeyHeader, httpmiddleware.RequestIDHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.LogRequests(),
	)
	return s, nil
}

func openSessionStore(cfg SessionConfig, healthSvc *health.Health) (session.Store, func()) {
	switch cfg.Store {
	case SessionRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		healthSvc.Add(health.Check{
			Name:    "redis",
			Kind:    health.Readiness,
			Timeout: 2 * time.Second,
			Func: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		})
		return session.NewRedisStore(rdb, cfg.Redis.Key, cfg.Redis.TTL), func() { _ = rdb.Close() }
	default:
		return session.NewFileStore(cfg.Path), func() {}
	}
}

func openCatalog(ctx context.Context, cfg CatalogConfig, api *backend.Client, healthSvc *health.Health) (product.Repository, func(), error) {
	switch cfg.Source {
	case CatalogPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create db pool")
		}
		if cfg.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, errors.Wrap(err, "run migrations")
			}
		}
		healthSvc.Add(health.Check{
			Name:    "postgres",
			Kind:    health.Readiness,
			Timeout: 5 * time.Second,
			Func:    health.PingCheck(pool),
		})
		return postgres.NewProductRepository(pool), pool.Close, nil
	case CatalogFile:
		return file.NewProductRepository(cfg.Snapshot), func() {}, nil
	default:
		return api.Products(), func() {}, nil
	}
}
