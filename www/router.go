package www

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/rs/cors"

	"wmscore/config"
	"wmscore/engine"
	"wmscore/idempotency"
	"wmscore/logging"
	"wmscore/metrics"
	"wmscore/stockstate"
)

// Deps are the collaborators the HTTP layer serves. Stock, Metrics and
// RedisPing may be left nil.
type Deps struct {
	Config    *config.Config
	Engine    *engine.Engine
	Gateway   *idempotency.Gateway
	Stock     *stockstate.Manager
	Metrics   *metrics.Metrics
	RedisPing func(ctx context.Context) error
}

type Handlers struct {
	engine    *engine.Engine
	gateway   *idempotency.Gateway
	stock     *stockstate.Manager
	metrics   *metrics.Metrics
	sessions  *sessions.CookieStore
	redisPing func(ctx context.Context) error
}

func NewRouter(d Deps) (http.Handler, error) {
	cfg := d.Config
	if cfg == nil {
		cfg = config.Defaults()
	}
	h := &Handlers{
		engine:    d.Engine,
		gateway:   d.Gateway,
		stock:     d.Stock,
		metrics:   d.Metrics,
		sessions:  newSessionStore(cfg.Web.SessionSecret),
		redisPing: d.RedisPing,
	}
	if h.gateway == nil {
		h.gateway = idempotency.New(d.Engine.DB(), nil)
	}
	if h.stock == nil {
		h.stock = stockstate.NewManager(d.Engine.DB(), nil)
	}
	if h.metrics == nil {
		h.metrics = metrics.New()
	}

	if err := h.ensureDefaultAdmin(context.Background()); err != nil {
		return nil, err
	}

	loginLimit, err := newRateLimiter(cfg.RateLimit.Login)
	if err != nil {
		return nil, err
	}
	writeLimit, err := newRateLimiter(cfg.RateLimit.Writes)
	if err != nil {
		return nil, err
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Web.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Idempotency-Key", headerTraceID, headerRequestSource},
		ExposedHeaders:   []string{headerTraceID, headerReplayed},
		AllowCredentials: true,
	})

	r := chi.NewRouter()
	r.Use(requestMeta)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)
	r.Use(c.Handler)

	r.Handle("/metrics", h.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.apiHealth)
		r.With(loginLimit).Post("/auth/login", h.apiLogin)
		r.Post("/auth/logout", h.apiLogout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireIdentity)
			r.Get("/auth/me", h.apiMe)
			for _, rt := range h.routes() {
				chain := r.With(h.gate(rt.perms...))
				if rt.method != http.MethodGet {
					chain = chain.With(writeLimit)
				}
				chain.Method(rt.method, rt.pattern, rt.handler)
			}
		})
	})

	logging.Logger.Info().Int("routes", len(h.routes())).Msg("www: router ready")
	return r, nil
}
