package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"carebridge/internal/accounts"
	"carebridge/internal/audit"
	"carebridge/internal/onboarding/metrics"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/requestcontext"
	"carebridge/pkg/sentinel"
)

// AccountSource is the slice of the account collaborator this module needs.
type AccountSource interface {
	Get(ctx context.Context, userID id.UserID) (*accounts.Account, error)
}

// Workflow drives a nurse through profile completion: it validates step
// ordering, records step data, and creates the review submission once all
// steps are done. It is the only component allowed to create submissions.
type Workflow struct {
	accounts    AccountSource
	profiles    ProfileStore
	submissions SubmissionStore
	auditor     *audit.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewWorkflow(
	accountSource AccountSource,
	profiles ProfileStore,
	submissions SubmissionStore,
	auditor *audit.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Workflow {
	return &Workflow{
		accounts:    accountSource,
		profiles:    profiles,
		submissions: submissions,
		auditor:     auditor,
		metrics:     m,
		logger:      logger,
	}
}

// GetStatus returns the caller's completion status, lazily creating the
// profile on first touch.
// Errors: CodeNotNurse when the caller is not a nurse; CodeStoreUnavailable
// when persistence is unreachable.
func (w *Workflow) GetStatus(ctx context.Context, userID id.UserID) (*StatusView, error) {
	if err := w.requireNurse(ctx, userID); err != nil {
		return nil, err
	}
	profile, err := w.getOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &StatusView{
		Status:         profile.CompletionStatus,
		Step1Completed: profile.Step1Completed,
		Step2Completed: profile.Step2Completed,
		Step3Completed: profile.Step3Completed,
		SubmittedAt:    profile.SubmittedAt,
	}, nil
}

// SaveStep records a step payload. Ordering is enforced as an atomic store
// precondition: a concurrent save of an earlier step either lands before this
// write (and the precondition passes) or it doesn't (and this save fails with
// a sequence violation). There is no stale in-between state.
//
// Saves are idempotent: re-submitting a step rewrites the payload but leaves
// the completion timestamp from the first save untouched, and the completion
// status never regresses.
func (w *Workflow) SaveStep(ctx context.Context, userID id.UserID, step int, payload json.RawMessage) error {
	if err := ValidateStep(step); err != nil {
		return err
	}
	if len(payload) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "step payload must not be empty")
	}
	if err := w.requireNurse(ctx, userID); err != nil {
		return err
	}
	if _, err := w.getOrCreateProfile(ctx, userID); err != nil {
		return err
	}

	_, err := w.profiles.SaveStep(ctx, userID, step, payload, requestcontext.Now(ctx))
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrPreconditionFailed):
			w.metrics.IncrementStepSave(step, "sequence_violation")
			return w.sequenceViolation(ctx, userID, step)
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "nurse profile not found")
		default:
			w.metrics.IncrementStepSave(step, "error")
			return dErrors.Wrap(dErrors.CodeStoreUnavailable, "profile store unreachable", err)
		}
	}

	w.metrics.IncrementStepSave(step, "saved")
	_ = w.auditor.Emit(ctx, audit.Event{
		Category: audit.CategoryOperations,
		UserID:   userID,
		Action:   audit.EventStepCompleted,
		Reason:   fmt.Sprintf("step_%d", step),
	})
	return nil
}

// Submit transitions the profile to submitted and creates the one and only
// review submission for this attempt.
//
// The submission insert runs first because it carries the uniqueness
// constraint; two concurrent submits race on the store's unique index and
// exactly one wins. The loser sees DuplicateSubmissionError, which callers
// may treat as "already submitted".
func (w *Workflow) Submit(ctx context.Context, userID id.UserID) error {
	if err := w.requireNurse(ctx, userID); err != nil {
		return err
	}
	profile, err := w.getOrCreateProfile(ctx, userID)
	if err != nil {
		return err
	}
	if !profile.AllStepsCompleted() {
		w.metrics.IncrementSubmission("incomplete")
		return dErrors.New(dErrors.CodeIncompleteProfile, "all three steps must be completed before submitting")
	}

	now := requestcontext.Now(ctx)
	submission := &Submission{
		ID:        id.NewSubmissionID(),
		UserID:    userID,
		ProfileID: profile.ID,
		Status:    SubmissionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.submissions.Create(ctx, submission); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			w.metrics.IncrementSubmission("duplicate")
			return dErrors.New(dErrors.CodeDuplicateSubmission, "a submission is already under review")
		}
		w.metrics.IncrementSubmission("error")
		return dErrors.Wrap(dErrors.CodeStoreUnavailable, "submission store unreachable", err)
	}

	if err := w.profiles.MarkSubmitted(ctx, userID, now); err != nil {
		// The submission exists but the profile still shows step_3_completed.
		// The access evaluator tolerates this window; log it for operators.
		w.logger.ErrorContext(ctx, "submission created but profile not marked submitted",
			"error", err,
			"user_id", userID.String(),
			"submission_id", submission.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.Wrap(dErrors.CodeStoreUnavailable, "profile store unreachable", err)
	}

	w.metrics.IncrementSubmission("created")
	_ = w.auditor.Emit(ctx, audit.Event{
		Category: audit.CategoryCompliance,
		UserID:   userID,
		Action:   audit.EventProfileSubmitted,
	})
	return nil
}

// CanAccessStep reports whether the nurse may open the given step.
// Step 1 is always reachable; later steps require their predecessors.
// Pure read, no side effects (a missing profile is not created here).
func (w *Workflow) CanAccessStep(ctx context.Context, userID id.UserID, step int) (bool, error) {
	if err := ValidateStep(step); err != nil {
		return false, err
	}
	if err := w.requireNurse(ctx, userID); err != nil {
		return false, err
	}
	if step == 1 {
		return true, nil
	}

	profile, err := w.profiles.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(dErrors.CodeStoreUnavailable, "profile store unreachable", err)
	}
	switch step {
	case 2:
		return profile.Step1Completed, nil
	default:
		return profile.Step1Completed && profile.Step2Completed, nil
	}
}

// sequenceViolation names the first incomplete prerequisite so clients can
// send the nurse to the right step, not just the one immediately before the
// attempted save. Falls back to step-1 when the profile cannot be re-read.
func (w *Workflow) sequenceViolation(ctx context.Context, userID id.UserID, step int) error {
	missing := step - 1
	if profile, err := w.profiles.Find(ctx, userID); err == nil {
		switch {
		case !profile.Step1Completed:
			missing = 1
		case !profile.Step2Completed:
			missing = 2
		}
	}
	return dErrors.New(dErrors.CodeSequenceViolation,
		fmt.Sprintf("step %d requires step %d to be completed first", step, missing))
}

func (w *Workflow) requireNurse(ctx context.Context, userID id.UserID) error {
	account, err := w.accounts.Get(ctx, userID)
	if err != nil {
		return err
	}
	if account.Role != id.RoleNurse {
		return dErrors.New(dErrors.CodeNotNurse, "only nurse accounts have onboarding profiles")
	}
	return nil
}

func (w *Workflow) getOrCreateProfile(ctx context.Context, userID id.UserID) (*NurseProfile, error) {
	profile, err := w.profiles.Find(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(dErrors.CodeStoreUnavailable, "profile store unreachable", err)
	}

	now := requestcontext.Now(ctx)
	fresh := &NurseProfile{
		ID:               id.NewProfileID(),
		UserID:           userID,
		CompletionStatus: StatusNotStarted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := w.profiles.Create(ctx, fresh); err != nil {
		// Lost a creation race; the winner's profile is the real one.
		if errors.Is(err, sentinel.ErrConflict) {
			profile, err = w.profiles.Find(ctx, userID)
			if err != nil {
				return nil, dErrors.Wrap(dErrors.CodeStoreUnavailable, "profile store unreachable", err)
			}
			return profile, nil
		}
		return nil, dErrors.Wrap(dErrors.CodeStoreUnavailable, "profile store unreachable", err)
	}

	_ = w.auditor.Emit(ctx, audit.Event{
		Category: audit.CategoryOperations,
		UserID:   userID,
		Action:   audit.EventProfileCreated,
	})
	return fresh, nil
}
