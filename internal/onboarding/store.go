package onboarding

import (
	"context"
	"encoding/json"
	"time"

	id "carebridge/pkg/domain"
)

// ProfileStore persists nurse profiles.
//
// SaveStep must apply the step's ordering precondition atomically at the
// store (conditional update), not against a possibly-stale read from the
// start of the request. Implementations return:
//   - sentinel.ErrNotFound when no profile exists for the user
//   - sentinel.ErrPreconditionFailed when a prerequisite step is incomplete
//   - sentinel.ErrInvalidState when the profile cannot accept the write
//     (e.g. marking submitted without all steps complete)
type ProfileStore interface {
	Find(ctx context.Context, userID id.UserID) (*NurseProfile, error)
	Create(ctx context.Context, profile *NurseProfile) error
	SaveStep(ctx context.Context, userID id.UserID, step int, payload json.RawMessage, at time.Time) (*NurseProfile, error)
	MarkSubmitted(ctx context.Context, userID id.UserID, at time.Time) error
	SetCompletionStatus(ctx context.Context, userID id.UserID, status CompletionStatus) error
}

// SubmissionStore persists submissions and their append-only action logs.
//
// Create must enforce the single-active-submission invariant at the store
// (unique constraint or equivalent), returning sentinel.ErrConflict when an
// active submission already exists for the user. A check-then-write pattern
// is not acceptable here; concurrent duplicate submits must not both succeed.
type SubmissionStore interface {
	Create(ctx context.Context, submission *Submission) error
	Find(ctx context.Context, submissionID id.SubmissionID) (*Submission, error)
	FindActive(ctx context.Context, userID id.UserID) (*Submission, error)
	SetStatus(ctx context.Context, submissionID id.SubmissionID, status SubmissionStatus, at time.Time) error
	AppendAction(ctx context.Context, submissionID id.SubmissionID, entry ActionEntry) error
	ListActions(ctx context.Context, submissionID id.SubmissionID) ([]ActionEntry, error)
}
