package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"carebridge/internal/accounts"
	"carebridge/internal/audit"
	"carebridge/internal/onboarding"
	"carebridge/internal/platform/middleware"
	"carebridge/internal/review"
	id "carebridge/pkg/domain"
)

const adminToken = "secret-token"

type fixture struct {
	router       *chi.Mux
	nurseID      id.UserID
	submissionID id.SubmissionID

	accountStore *accounts.InMemoryStore
	profileStore *onboarding.InMemoryProfileStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accountStore := accounts.NewInMemoryStore()
	profileStore := onboarding.NewInMemoryProfileStore()
	submissionStore := onboarding.NewInMemorySubmissionStore()
	auditor := audit.NewPublisher(audit.NewInMemoryStore(), nil, logger)

	nurseID := id.UserID(uuid.New())
	require.NoError(t, accountStore.Create(ctx, &accounts.Account{
		UserID: nurseID,
		Role:   id.RoleNurse,
		Status: accounts.AccountPending,
	}))

	profileID := id.NewProfileID()
	now := time.Now().UTC()
	require.NoError(t, profileStore.Create(ctx, &onboarding.NurseProfile{
		ID:               profileID,
		UserID:           nurseID,
		CompletionStatus: onboarding.StatusSubmitted,
		Step1Completed:   true,
		Step2Completed:   true,
		Step3Completed:   true,
		SubmittedAt:      &now,
	}))

	submissionID := id.NewSubmissionID()
	require.NoError(t, submissionStore.Create(ctx, &onboarding.Submission{
		ID:        submissionID,
		UserID:    nurseID,
		ProfileID: profileID,
		Status:    onboarding.SubmissionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	service := review.NewService(nil, submissionStore, profileStore, accounts.NewService(accountStore), auditor, logger)
	handler := New(service, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(adminToken, logger))
		handler.Register(r)
	})

	return &fixture{
		router:       router,
		nurseID:      nurseID,
		submissionID: submissionID,
		accountStore: accountStore,
		profileStore: profileStore,
	}
}

func (f *fixture) applyAction(t *testing.T, action, note string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"action":   action,
		"note":     note,
		"admin_id": uuid.New().String(),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/admin/submissions/"+f.submissionID.String()+"/actions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", adminToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAdminTokenRequired(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/submissions/"+f.submissionID.String(), nil)
	// No admin token header set
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetSubmission(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/submissions/"+f.submissionID.String(), nil)
	req.Header.Set("X-Admin-Token", adminToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var view SubmissionViewResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	require.Equal(t, f.submissionID.String(), view.Submission.ID)
	require.Equal(t, "pending", view.Submission.Status)
	require.Empty(t, view.Actions)
}

func TestGetSubmissionNotFound(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/submissions/"+uuid.New().String(), nil)
	req.Header.Set("X-Admin-Token", adminToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApproveViaHandler(t *testing.T) {
	f := newFixture(t)

	rec := f.applyAction(t, "approve", "credentials verified")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SubmissionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "approved", resp.Status)

	account, err := f.accountStore.Find(context.Background(), f.nurseID)
	require.NoError(t, err)
	require.Equal(t, accounts.AccountVerified, account.Status)

	profile, err := f.profileStore.Find(context.Background(), f.nurseID)
	require.NoError(t, err)
	require.Equal(t, onboarding.StatusApproved, profile.CompletionStatus)
}

func TestInvalidActionRejected(t *testing.T) {
	f := newFixture(t)

	rec := f.applyAction(t, "obliterate", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDoubleApproveConflicts(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.applyAction(t, "approve", "").Code)
	require.Equal(t, http.StatusConflict, f.applyAction(t, "reject", "").Code)
}
