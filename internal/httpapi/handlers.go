package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gymbridge/internal/common"
	"github.com/dmitrijs2005/gymbridge/internal/models"
	"github.com/dmitrijs2005/gymbridge/internal/registry"
	"github.com/go-chi/chi/v5"
)

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type padronResponse struct {
	OK     bool             `json:"ok"`
	Padron *registry.Member `json:"padron"`
	Cached bool             `json:"cached"`
}

// identityResponse never carries the password hash.
type identityResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	NationalID    string    `json:"dni"`
	SocioID       *string   `json:"socio_id"`
	SocioN        *string   `json:"socio_n"`
	Barcode       *string   `json:"barcode"`
	Balance       string    `json:"saldo"`
	StatusCode    int       `json:"semaforo"`
	UserType      string    `json:"user_type"`
	AccountStatus string    `json:"estado"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toIdentityResponse(u *models.Identity) identityResponse {
	return identityResponse{
		ID:            u.ID,
		Name:          u.Name,
		NationalID:    u.NationalID,
		SocioID:       u.SocioID,
		SocioN:        u.SocioN,
		Barcode:       u.Barcode,
		Balance:       u.Balance,
		StatusCode:    u.StatusCode,
		UserType:      u.UserType,
		AccountStatus: u.AccountStatus,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.Warn(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{OK: false, Error: "database unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, errorResponse{OK: true})
}

func (h *Handler) handlePadronLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dni := chi.URLParam(r, "dni")

	member, err := h.resolver.Resolve(ctx, dni)
	if err != nil {
		h.logger.Warn(ctx, "padron lookup failed", "dni", dni, "error", err)
		status := http.StatusInternalServerError
		var regErr *registry.Error
		if errors.As(err, &regErr) {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{OK: false})
		return
	}

	writeJSON(w, http.StatusOK, padronResponse{
		OK:     true,
		Padron: member,
		Cached: h.resolver.Cached(ctx, dni),
	})
}

func (h *Handler) handleEnsureIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{OK: false, Error: "invalid mirror id"})
		return
	}

	u, err := h.identities.EnsureIdentityByMirrorID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{OK: false, Error: "mirror row not found"})
			return
		}
		h.logger.Error(ctx, "identity materialization failed", "mirror_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{OK: false, Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, toIdentityResponse(u))
}
