package api

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goplacement/internal/audit"
	"github.com/TimurManjosov/goplacement/internal/auth"
	"github.com/TimurManjosov/goplacement/internal/options"
	"github.com/TimurManjosov/goplacement/internal/rules"
	"github.com/TimurManjosov/goplacement/internal/telemetry"
)

// RuleLoader loads the effective rule set. *resolver.Resolver implements it.
type RuleLoader interface {
	RuleSet(ctx context.Context) rules.RuleSet
}

// Auditor records administrative actions. *audit.Service implements it.
type Auditor interface {
	Log(event audit.Event)
}

type nopAuditor struct{}

func (nopAuditor) Log(audit.Event) {}

type Server struct {
	store     options.Store
	rules     RuleLoader
	authn     *auth.Authenticator
	auditor   Auditor
	log       zerolog.Logger
	rateLimit int
	timeout   time.Duration
	settings  *template.Template
}

// NewServer wires the HTTP API. A nil auditor disables auditing.
func NewServer(store options.Store, loader RuleLoader, authn *auth.Authenticator, auditor Auditor, log zerolog.Logger) *Server {
	if auditor == nil {
		auditor = nopAuditor{}
	}
	s := &Server{
		store:    store,
		rules:    loader,
		authn:    authn,
		auditor:  auditor,
		log:      log,
		timeout:  15 * time.Second,
		settings: settingsTemplate,
	}
	authn.OnFailure(s.authFailed)
	return s
}

// WithRateLimit limits every client IP to perMinute requests. Zero disables it.
func (s *Server) WithRateLimit(perMinute int) *Server {
	s.rateLimit = perMinute
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)
	r.Use(telemetry.Middleware)
	if s.rateLimit > 0 {
		r.Use(httprate.Limit(s.rateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
				RateLimitedError(w, req, "rate limit exceeded")
			}),
		))
	}
	r.Use(middleware.Timeout(s.timeout))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		NotFoundError(w, req, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeErrorResponse(w, req, http.StatusMethodNotAllowed,
			NewErrorResponse(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed"))
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		// public: rule set (ETag) and per-host decisions
		r.Get("/rules", s.handleRules)
		r.Get("/resolve", s.handleResolve)
		r.Get("/render", s.handleRender)

		// admin (protected): options
		r.Group(func(r chi.Router) {
			r.Use(s.authn.RequireAdmin)
			r.Get("/options", s.handleGetOptions)
			r.Put("/options", s.handlePutOptions)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.authn.RequireAdmin)
		r.Get("/settings", s.handleSettingsForm)
		r.Post("/settings", s.handleSettingsSave)
	})

	return r
}

func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.auditor.Log(audit.NewEventBuilder(r).
		ForResource(audit.ResourceTypeSystem, r.URL.Path).
		WithAction(audit.ActionAuthFailed).
		Failure(msg).
		Build())

	if status == http.StatusUnauthorized {
		UnauthorizedError(w, r, msg)
		return
	}
	ForbiddenError(w, r, msg)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		ev := s.log.Info()
		if ww.Status() >= http.StatusInternalServerError {
			ev = s.log.Error()
		} else if r.URL.Path == "/healthz" {
			ev = s.log.Debug()
		}
		ev.Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
