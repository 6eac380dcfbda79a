package contactsservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mycelian/contacts-service/internal/api"
	"github.com/mycelian/contacts-service/internal/config"
	"github.com/mycelian/contacts-service/internal/health"
	"github.com/mycelian/contacts-service/internal/logger"
	"github.com/mycelian/contacts-service/internal/remote"
	"github.com/mycelian/contacts-service/internal/schema"
	"github.com/mycelian/contacts-service/internal/synccache"
)

// Run starts the contacts service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("contacts-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	log = log.Level(cfg.Level())

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("http_addr", cfg.GetHTTPAddr()).
		Dur("cache_ttl", cfg.CacheTTL).
		Msg("Contacts service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	deps, err := initDependencies(cfg, log)
	if err != nil {
		return err
	}

	svcHealth := startHealthCheckers(ctx, cfg, log, deps.client)
	go warmCache(ctx, deps.cache, log)

	router := api.NewRouter(api.Deps{
		Store:   deps.client,
		Cache:   deps.cache,
		Healthy: svcHealth.IsHealthy,
		Down:    svcHealth.Down,
		Log:     log,
	})

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

type dependencies struct {
	mapper *schema.Mapper
	client *remote.Client
	cache  *synccache.Cache
}

// initDependencies builds the mapper, remote client and cache from cfg.
func initDependencies(cfg *config.Config, log zerolog.Logger) (*dependencies, error) {
	mapper, err := newMapper(cfg)
	if err != nil {
		log.Error().Stack().Err(err).Str("schema_file", cfg.SchemaFile).Msg("Schema tables unavailable")
		return nil, err
	}

	client, err := remote.New(cfg.RemoteConfig(), mapper,
		remote.WithLogger(log.With().Str("component", "remote").Logger()),
		remote.WithDebugLogging(cfg.DebugHTTP),
	)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Remote client unavailable")
		return nil, err
	}

	cache := synccache.New(client,
		synccache.WithTTL(cfg.CacheTTL),
		synccache.WithPageSize(cfg.PageSize),
		synccache.WithRefreshTimeout(cfg.CacheRefreshTimeout),
		synccache.WithLogger(log.With().Str("component", "cache").Logger()),
	)
	return &dependencies{mapper: mapper, client: client, cache: cache}, nil
}

func newMapper(cfg *config.Config) (*schema.Mapper, error) {
	tables, err := schema.DefaultTables()
	if cfg.SchemaFile != "" {
		tables, err = schema.LoadTables(cfg.SchemaFile)
	}
	if err != nil {
		return nil, fmt.Errorf("load schema tables: %w", err)
	}
	return schema.NewMapper(tables)
}

// startHealthCheckers starts the remote checker and the service-level aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, pinger health.HealthPinger) *health.ServiceHealthChecker {
	remoteChecker := health.NewRemoteHealthChecker(pinger, log, cfg.HealthProbeTimeout)
	go remoteChecker.Start(ctx, cfg.HealthInterval)

	svcHealth := health.NewServiceHealthChecker(log, remoteChecker)
	go svcHealth.Start(ctx, cfg.HealthInterval)
	return svcHealth
}

// warmCache loads the first snapshot so early requests are served from memory.
func warmCache(ctx context.Context, cache *synccache.Cache, log zerolog.Logger) {
	contacts, err := cache.Load(ctx, false)
	if err != nil {
		log.Warn().Err(err).Msg("initial cache load failed, will retry on first request")
		return
	}
	log.Info().Int("contacts", len(contacts)).Msg("cache warmed")
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RemoteTimeout*time.Duration(max(cfg.MaxAttempts, 1)) + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.GetHTTPAddr()).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
