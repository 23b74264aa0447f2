package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carebridge/internal/uploads"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/httputil"
	"carebridge/pkg/requestcontext"
)

const maxDocumentBytes = 10 << 20 // 10 MiB

// Handler accepts document uploads for onboarding step payloads.
type Handler struct {
	store  uploads.Store
	logger *slog.Logger
}

func New(store uploads.Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register mounts the upload endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/documents", h.HandleUpload)
}

// HandleUpload handles POST /documents (multipart form, field "file").
// The response descriptor is what step 3 payloads embed.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	if err := r.ParseMultipartForm(maxDocumentBytes); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "multipart form with a file field is required"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file field is required"))
		return
	}
	defer file.Close()

	if header.Size > maxDocumentBytes {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "document must be at most 10 MiB"))
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, maxDocumentBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read uploaded file"))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	descriptor, err := h.store.Put(ctx, userID, header.Filename, contentType, content)
	if err != nil {
		h.logger.ErrorContext(ctx, "document upload failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"file_name", header.Filename,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeStoreUnavailable, "document store unreachable", err))
		return
	}

	h.logger.InfoContext(ctx, "document uploaded",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID.String(),
		"file_name", descriptor.FileName,
		"size", descriptor.Size,
	)
	httputil.WriteJSON(w, http.StatusCreated, descriptor)
}
