// Package httpapi is the ops HTTP surface of padronsync serve: health,
// metrics, the padrón lookup and on-demand identity materialization.
package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gymbridge/internal/logging"
	"github.com/dmitrijs2005/gymbridge/internal/models"
	"github.com/dmitrijs2005/gymbridge/internal/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TokenHeader carries the shared internal token.
const TokenHeader = "X-Internal-Token"

type Pinger interface {
	PingContext(ctx context.Context) error
}

type MemberResolver interface {
	Resolve(ctx context.Context, rawDNI string) (*registry.Member, error)
	Cached(ctx context.Context, rawDNI string) bool
}

type IdentityEnsurer interface {
	EnsureIdentityByMirrorID(ctx context.Context, mirrorID int64) (*models.Identity, error)
}

// Handler holds the dependencies of the ops endpoints.
type Handler struct {
	db         Pinger
	resolver   MemberResolver
	identities IdentityEnsurer
	gatherer   prometheus.Gatherer
	token      string
	logger     logging.Logger
}

func NewHandler(db Pinger, resolver MemberResolver, identities IdentityEnsurer, gatherer prometheus.Gatherer, token string, logger logging.Logger) *Handler {
	return &Handler{
		db:         db,
		resolver:   resolver,
		identities: identities,
		gatherer:   gatherer,
		token:      token,
		logger:     logger.With("module", "httpapi"),
	}
}

// NewRouter wires the endpoints. /healthz and /metrics stay open for probes
// and scrapers; /internal requires the token.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Route("/internal", func(r chi.Router) {
		r.Use(h.requireToken)
		r.Get("/padron/{dni}", h.handlePadronLookup)
		r.Post("/mirror/{id}/identity", h.handleEnsureIdentity)
	})

	return r
}

// requireToken rejects every request when no token is configured.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(TokenHeader)
		if h.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorResponse{OK: false, Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
