package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cloo-solutions/regassist/internal/api"
	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/logger"
)

// CodeDependencyUnavailable is reported by /ready when a model backend does
// not answer.
const CodeDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"

const dependencyCheckTimeout = 3 * time.Second

// ManifestFunc reports the manifest of the index currently being served, or
// nil when no index is loaded.
type ManifestFunc func() *domain.IndexManifest

// DependencyCheck reports whether a backend the server relies on is reachable.
type DependencyCheck func(ctx context.Context) error

type dependency struct {
	name  string
	check DependencyCheck
}

type HealthHandler struct {
	manifest ManifestFunc
	backend  string
	deps     []dependency
}

type HealthOption func(*HealthHandler)

// WithDependency makes /ready fail while check fails.
func WithDependency(name string, check DependencyCheck) HealthOption {
	return func(h *HealthHandler) {
		h.deps = append(h.deps, dependency{name: name, check: check})
	}
}

func NewHealthHandler(manifest ManifestFunc, backend string, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{manifest: manifest, backend: backend}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type ReadyResponse struct {
	Status         string `json:"status"`
	Backend        string `json:"backend"`
	IndexVersion   string `json:"index_version"`
	Rows           int    `json:"rows"`
	Dimensions     int    `json:"dimensions"`
	EmbeddingModel string `json:"embedding_model"`
	BuiltAt        string `json:"built_at"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready succeeds only once an index with at least one row is loaded and
// every registered dependency answers.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	var m *domain.IndexManifest
	if h.manifest != nil {
		m = h.manifest()
	}
	if m == nil || m.Rows == 0 {
		api.HandleError(w, domain.ErrIndexUnavailable)
		return
	}

	for _, dep := range h.deps {
		ctx, cancel := context.WithTimeout(r.Context(), dependencyCheckTimeout)
		err := dep.check(ctx)
		cancel()
		if err != nil {
			logger.FromContext(r.Context()).Warn("readiness check failed", "dependency", dep.name, "error", err)
			api.JSON(w, http.StatusServiceUnavailable, api.ErrorResponse{
				Error: dep.name + " is unreachable",
				Code:  CodeDependencyUnavailable,
			})
			return
		}
	}

	api.Success(w, http.StatusOK, ReadyResponse{
		Status:         "ready",
		Backend:        h.backend,
		IndexVersion:   m.Version,
		Rows:           m.Rows,
		Dimensions:     m.Dimensions,
		EmbeddingModel: m.EmbeddingModel,
		BuiltAt:        m.BuiltAt.UTC().Format(time.RFC3339),
	})
}
