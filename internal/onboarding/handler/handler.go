package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"carebridge/internal/onboarding"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/httputil"
	"carebridge/pkg/requestcontext"
)

// Service defines the completion workflow operations the handler exposes.
type Service interface {
	GetStatus(ctx context.Context, userID id.UserID) (*onboarding.StatusView, error)
	SaveStep(ctx context.Context, userID id.UserID, step int, payload json.RawMessage) error
	Submit(ctx context.Context, userID id.UserID) error
	CanAccessStep(ctx context.Context, userID id.UserID, step int) (bool, error)
}

// Handler wires the nurse onboarding endpoints to the workflow service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the onboarding endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/nurse/profile/status", h.HandleGetStatus)
	r.Get("/nurse/profile/steps/{step}/access", h.HandleStepAccess)
	r.Post("/nurse/profile/steps/{step}", h.HandleSaveStep)
	r.Post("/nurse/profile/submit", h.HandleSubmit)
}

// HandleGetStatus handles GET /nurse/profile/status.
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}

	view, err := h.service.GetStatus(ctx, userID)
	if err != nil {
		h.logError(ctx, "get status failed", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleSaveStep handles POST /nurse/profile/steps/{step}.
func (h *Handler) HandleSaveStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	step, ok := parseStep(w, r)
	if !ok {
		return
	}

	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "step payload must be valid JSON"))
		return
	}

	if err := h.service.SaveStep(ctx, userID, step, payload); err != nil {
		h.logError(ctx, "save step failed", userID, err, "step", step)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "step saved",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID.String(),
		"step", step,
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// HandleSubmit handles POST /nurse/profile/submit.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}

	if err := h.service.Submit(ctx, userID); err != nil {
		h.logError(ctx, "submit failed", userID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "profile submitted",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID.String(),
	)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "submitted"})
}

// HandleStepAccess handles GET /nurse/profile/steps/{step}/access. The UI uses
// it to decide whether a step page may open.
func (h *Handler) HandleStepAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	step, ok := parseStep(w, r)
	if !ok {
		return
	}

	accessible, err := h.service.CanAccessStep(ctx, userID, step)
	if err != nil {
		h.logError(ctx, "step access check failed", userID, err, "step", step)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"accessible": accessible})
}

func (h *Handler) requireUser(w http.ResponseWriter, ctx context.Context) (id.UserID, bool) {
	userID := requestcontext.UserID(ctx)
	if userID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) logError(ctx context.Context, msg string, userID id.UserID, err error, extra ...any) {
	args := append([]any{
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID.String(),
		"error", err,
	}, extra...)
	h.logger.ErrorContext(ctx, msg, args...)
}

func parseStep(w http.ResponseWriter, r *http.Request) (int, bool) {
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "step must be 1, 2, or 3"))
		return 0, false
	}
	if err := onboarding.ValidateStep(step); err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return step, true
}
