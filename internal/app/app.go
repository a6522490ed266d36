package app

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/taberna/internal/catalog"
	"github.com/xenking/taberna/internal/cms"
	"github.com/xenking/taberna/internal/domain/auth"
	"github.com/xenking/taberna/internal/domain/cart"
	"github.com/xenking/taberna/internal/domain/order"
	"github.com/xenking/taberna/internal/events"
	"github.com/xenking/taberna/internal/handler"
	"github.com/xenking/taberna/internal/kv"
	"github.com/xenking/taberna/internal/storage/postgres"
	"github.com/xenking/taberna/internal/storage/redis"
	"github.com/xenking/taberna/pkg/health"
	"github.com/xenking/taberna/pkg/httpmiddleware"
)

const serviceName = "taberna-api"

// publisher is an order.Publisher holding a connection.
type publisher interface {
	order.Publisher
	io.Closer
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.Store.Driver),
		zap.String("cms", cfg.CMS.URL),
	)

	loc, err := time.LoadLocation(cfg.Location)
	if err != nil {
		return errors.Wrap(err, "load location")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// Key-value store for carts and sessions, plus the form rate limiter.
	store, limiter, closeStore, err := openStore(ctx, g, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// CMS client and menu cache.
	client, err := cms.New(cfg.CMS.URL, cms.Options{
		APIToken:       cfg.CMS.APIToken,
		Timeout:        cfg.CMS.Timeout,
		TracerProvider: m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create cms client")
	}
	menu := catalog.New(client.Products(), cfg.Catalog.TTL)

	// Order events.
	var pub publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Timeout)
		lg.Info("Publishing order events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer func() {
		if err := pub.Close(); err != nil {
			lg.Warn("Close event publisher", zap.Error(err))
		}
	}()

	// Domain services.
	orderService, err := order.NewService(menu, client.Orders(), order.KeywordRule(cfg.Order.CommentKeywords),
		order.Config{
			PaymentURL: cfg.Order.PaymentURL,
			Tables:     cfg.Order.Tables,
		},
		order.WithPublisher(pub),
		order.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	authService := auth.NewService(client, store, cfg.Store.SessionTTL)
	carts := cart.NewStore(store, cfg.Store.CartTTL)

	admin, err := handler.NewAPIKeyAuth(cfg.Admin.Pepper, cfg.Admin.APIKeyHashes)
	if err != nil {
		return errors.Wrap(err, "parse admin api keys")
	}

	// Health checks.
	healthSvc := health.New(health.Options{})
	healthSvc.Add(health.Readiness, health.Check{Name: "store", Timeout: 2 * time.Second, Func: health.Ping(store)})
	healthSvc.Add(health.Readiness, health.Check{Name: "cms", Timeout: 5 * time.Second, Func: health.Ping(client)})
	healthSvc.Add(health.Liveness, health.Check{Name: "goroutines", Timeout: time.Second, Func: health.Goroutines(10000)})
	g.Go(func() error { return healthSvc.Run(ctx) })

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{
			Cookies: handler.CookieConfig{
				Secure:        cfg.Cookies.Secure,
				Domain:        cfg.Cookies.Domain,
				CartMaxAge:    cfg.Store.CartTTL,
				SessionMaxAge: cfg.Store.SessionTTL,
			},
			Location: loc,
			Limit: httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Limiter: limiter,
				Prefix:  "forms:",
			}),
		},
		menu, carts, orderService, authService, admin,
	)

	r := chi.NewRouter()
	r.Use(httpmiddleware.LabelRoute())
	r.Method(http.MethodGet, "/livez", healthSvc.LiveHandler())
	r.Method(http.MethodGet, "/readyz", healthSvc.ReadyHandler())
	h.Routes(r)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.CMS.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(r,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				Origins:     cfg.CORS.Origins,
				Headers:     []string{"Content-Type", httpmiddleware.RequestIDHeader, handler.APIKeyHeader},
				Expose:      []string{httpmiddleware.RequestIDHeader},
				Credentials: cfg.CORS.AllowCredentials,
				MaxAge:      86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	g.Go(func() error {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		healthSvc.SetReady(true)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}

// openStore connects the configured key-value store and picks a rate limiter
// that shares its state across replicas when the store allows it.
func openStore(ctx context.Context, g *errgroup.Group, cfg *Config) (kv.Store, httpmiddleware.Limiter, func(), error) {
	lg := zctx.From(ctx)
	switch cfg.Store.Driver {
	case DriverRedis:
		s, err := redis.New(cfg.Store.RedisURL, cfg.Store.Namespace)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "create redis store")
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, nil, nil, errors.Wrap(err, "ping redis")
		}
		limiter := httpmiddleware.NewRedisWindow(s.Client(), cfg.Store.Namespace+":", cfg.RateLimit.Max, cfg.RateLimit.Window)
		return s, limiter, func() {
			if err := s.Close(); err != nil {
				lg.Warn("Close redis", zap.Error(err))
			}
		}, nil

	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, errors.Wrap(err, "run migrations")
		}
		s := postgres.NewStore(pool)
		g.Go(func() error {
			purgeExpired(ctx, s, cfg.Store.PurgeInterval)
			return nil
		})
		return s, localLimiter(ctx, g, cfg), pool.Close, nil

	default:
		return kv.NewMemory(), localLimiter(ctx, g, cfg), func() {}, nil
	}
}

func localLimiter(ctx context.Context, g *errgroup.Group, cfg *Config) httpmiddleware.Limiter {
	l := httpmiddleware.NewSlidingWindow(cfg.RateLimit.Max, cfg.RateLimit.Window)
	g.Go(func() error {
		l.RunCleanup(ctx)
		return nil
	})
	return l
}

// purgeExpired deletes expired entries of the postgres store on every tick.
func purgeExpired(ctx context.Context, s *postgres.Store, interval time.Duration) {
	lg := zctx.From(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				lg.Warn("Purge expired entries", zap.Error(err))
				continue
			}
			if n > 0 {
				lg.Debug("Purged expired entries", zap.Int64("count", n))
			}
		}
	}
}
