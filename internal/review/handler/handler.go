package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"carebridge/internal/onboarding"
	"carebridge/internal/review"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/httputil"
	"carebridge/pkg/requestcontext"
)

// Service defines the review operations the admin endpoints expose.
type Service interface {
	Get(ctx context.Context, submissionID id.SubmissionID) (*review.SubmissionView, error)
	Apply(ctx context.Context, adminID id.UserID, submissionID id.SubmissionID, action review.Action, note string) (*onboarding.Submission, error)
}

// Handler wires the admin review endpoints. Mount it behind the admin token
// middleware; it performs no authentication itself.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the review endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/submissions/{id}", h.HandleGetSubmission)
	r.Post("/admin/submissions/{id}/actions", h.HandleApplyAction)
}

// HandleGetSubmission handles GET /admin/submissions/{id}.
func (h *Handler) HandleGetSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	submissionID, err := id.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.service.Get(ctx, submissionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromView(view))
}

// HandleApplyAction handles POST /admin/submissions/{id}/actions.
func (h *Handler) HandleApplyAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	submissionID, err := id.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[ActionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	submission, err := h.service.Apply(ctx, req.ParsedAdminID(), submissionID, req.ParsedAction(), req.Note)
	if err != nil {
		h.logger.ErrorContext(ctx, "review action failed",
			"request_id", requestID,
			"submission_id", submissionID.String(),
			"action", req.Action,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSubmission(submission))
}

// ActionRequest is the HTTP request body for POST /admin/submissions/{id}/actions.
type ActionRequest struct {
	Action  string `json:"action"`
	Note    string `json:"note"`
	AdminID string `json:"admin_id"`

	parsedAction  review.Action
	parsedAdminID id.UserID
}

// Validate validates and parses the request.
func (r *ActionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Action = strings.TrimSpace(r.Action)
	if r.Action == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "action is required")
	}
	action, err := review.ParseAction(r.Action)
	if err != nil {
		return err
	}
	r.parsedAction = action

	r.AdminID = strings.TrimSpace(r.AdminID)
	if r.AdminID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "admin_id is required")
	}
	adminID, err := id.ParseUserID(r.AdminID)
	if err != nil {
		return err
	}
	r.parsedAdminID = adminID

	if len(r.Note) > 2000 {
		return dErrors.New(dErrors.CodeInvalidInput, "note must be at most 2000 characters")
	}
	return nil
}

// ParsedAction returns the validated action.
func (r *ActionRequest) ParsedAction() review.Action { return r.parsedAction }

// ParsedAdminID returns the validated admin identifier.
func (r *ActionRequest) ParsedAdminID() id.UserID { return r.parsedAdminID }

// SubmissionResponse is the wire shape of a submission.
type SubmissionResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActionResponse is one entry of the submission's action log.
type ActionResponse struct {
	AdminID string    `json:"admin_id"`
	Action  string    `json:"action"`
	Note    string    `json:"note,omitempty"`
	At      time.Time `json:"at"`
}

// SubmissionViewResponse pairs a submission with its action history.
type SubmissionViewResponse struct {
	Submission SubmissionResponse `json:"submission"`
	Actions    []ActionResponse   `json:"actions"`
}

// FromSubmission converts a domain submission to its wire shape.
func FromSubmission(submission *onboarding.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:        submission.ID.String(),
		UserID:    submission.UserID.String(),
		Status:    string(submission.Status),
		CreatedAt: submission.CreatedAt,
		UpdatedAt: submission.UpdatedAt,
	}
}

// FromView converts a submission view to its wire shape.
func FromView(view *review.SubmissionView) SubmissionViewResponse {
	actions := make([]ActionResponse, 0, len(view.Actions))
	for _, entry := range view.Actions {
		actions = append(actions, ActionResponse{
			AdminID: entry.AdminID.String(),
			Action:  entry.Action,
			Note:    entry.Note,
			At:      entry.At,
		})
	}
	return SubmissionViewResponse{
		Submission: FromSubmission(view.Submission),
		Actions:    actions,
	}
}
