package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goplacement/internal/api"
	"github.com/TimurManjosov/goplacement/internal/audit"
	"github.com/TimurManjosov/goplacement/internal/auth"
	"github.com/TimurManjosov/goplacement/internal/config"
	"github.com/TimurManjosov/goplacement/internal/inject"
	"github.com/TimurManjosov/goplacement/internal/logging"
	"github.com/TimurManjosov/goplacement/internal/options"
	"github.com/TimurManjosov/goplacement/internal/remote"
	"github.com/TimurManjosov/goplacement/internal/resolver"
	"github.com/TimurManjosov/goplacement/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", logging.FormatJSON, os.Stderr)
		bootLog.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.LogLevel, logging.Format(cfg.LogFormat), os.Stderr)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing")
	}
	telemetry.Init()

	st, err := options.NewStore(ctx, options.FactoryConfig{
		Type:           cfg.StoreType,
		DSN:            cfg.DatabaseDSN,
		ConnectTimeout: cfg.DBConnectTimeout,
		File:           cfg.OptionsFile,
	}, logging.Component(log, "options"))
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.StoreType).Msg("options store")
	}
	defer st.Close()

	auditor := newAuditor(ctx, cfg, st, logging.Component(log, "audit"))
	defer auditor.Close()

	res := resolver.New(st, remote.NewFetcher(cfg.FetchTimeout), logging.Component(log, "resolver"))
	authn := auth.NewAuthenticator(cfg.AdminAPIKey, cfg.AdminAPIKeyHash)
	srvAPI := api.NewServer(st, res, authn, auditor, logging.Component(log, "api")).
		WithRateLimit(cfg.RateLimitPerIP)

	servers := []*http.Server{
		{
			Addr:              cfg.HTTPAddr,
			Handler:           srvAPI.Router(),
			ReadHeaderTimeout: 3 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 3 * time.Second,
		},
	}

	if cfg.ProxyEnabled() {
		injector := inject.NewInjector(res, cfg.SiteHost, logging.Component(log, "proxy"))
		var handler http.Handler
		if cfg.SiteDir != "" {
			handler = injector.NewSiteHandler(cfg.SiteDir)
			log.Info().Str("site_dir", cfg.SiteDir).Str("site_host", cfg.SiteHost).Msg("injecting static site enabled")
		} else {
			upstream, err := url.Parse(cfg.UpstreamURL)
			if err != nil {
				log.Fatal().Err(err).Msg("upstream url")
			}
			handler = injector.NewProxy(upstream)
			log.Info().Str("upstream", cfg.UpstreamURL).Str("site_host", cfg.SiteHost).Msg("injecting proxy enabled")
		}
		servers = append(servers, &http.Server{
			Addr:              cfg.ProxyAddr,
			Handler:           handler,
			ReadHeaderTimeout: 3 * time.Second,
			IdleTimeout:       60 * time.Second,
		})
	}

	errc := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("listening")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	}

	// graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-errc:
		log.Error().Err(err).Msg("server failed")
	}
	ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(ctxShut)
	}
	if err := shutdownTracing(ctxShut); err != nil {
		log.Warn().Err(err).Msg("tracing shutdown")
	}
	log.Info().Msg("stopped")
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	return mux
}

// newAuditor logs audit events. They are also stored in postgres when the
// options live there, and posted to the audit webhook when one is configured.
func newAuditor(ctx context.Context, cfg *config.Config, st options.Store, log zerolog.Logger) *audit.Service {
	sinks := audit.MultiSink{audit.NewLogSink(log)}
	if pg, ok := st.(*options.PostgresStore); ok {
		pgSink, err := audit.NewPostgresSink(ctx, pg.Pool())
		if err != nil {
			log.Fatal().Err(err).Msg("audit table")
		}
		sinks = append(sinks, pgSink)
	}
	if cfg.AuditWebhookURL != "" {
		sinks = append(sinks, audit.NewWebhookSink(cfg.AuditWebhookURL, cfg.AuditWebhookSecret, log))
	}
	return audit.NewService(sinks, audit.SystemClock{}, audit.UUIDGenerator{}, audit.NewDefaultRedactor(), 1000, log)
}
