package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carebridge/internal/access"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/httputil"
	"carebridge/pkg/requestcontext"
)

// Service defines the access evaluation the handler exposes.
type Service interface {
	EvaluateAccess(ctx context.Context, userID id.UserID) (access.AccessDecision, error)
}

// Handler serves the caller's own access decision so clients can route
// without probing protected endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the access endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/nurse/access", h.HandleGetAccess)
}

// HandleGetAccess handles GET /nurse/access.
//
// A store failure still returns 200 with the fail-closed decision: the client
// needs the routing metadata either way, and the error is already logged.
func (h *Handler) HandleGetAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	decision, err := h.service.EvaluateAccess(ctx, userID)
	if err != nil {
		h.logger.WarnContext(ctx, "access evaluation degraded",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"error", err,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, decision)
}
