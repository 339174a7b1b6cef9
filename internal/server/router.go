package server

import (
	"net/http"
	"time"

	"github.com/cloo-solutions/regassist/internal/api/handlers"
	"github.com/cloo-solutions/regassist/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 64 * 1024

type RouterConfig struct {
	// AuthValidator guards the query endpoints. Nil leaves them open.
	AuthValidator middleware.AuthValidator
	MaxBodyBytes  int64
	// RequestTimeout bounds the context of each query request. Zero disables it.
	RequestTimeout time.Duration

	HealthHandler *handlers.HealthHandler
	AnswerHandler *handlers.AnswerHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.HealthHandler.Health)
	r.Get("/ready", cfg.HealthHandler.Ready)

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))
		if cfg.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
		}

		r.Post("/answer", cfg.AnswerHandler.Answer)
		r.Post("/search", cfg.AnswerHandler.Search)
	})

	return r
}
