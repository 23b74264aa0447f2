package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"carebridge/internal/accounts"
	"carebridge/internal/audit"
	"carebridge/internal/onboarding"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/platform/tx"
	"carebridge/pkg/requestcontext"
	"carebridge/pkg/sentinel"
)

// AccountSink is the account mutation the review flow performs.
type AccountSink interface {
	SetStatus(ctx context.Context, userID id.UserID, status accounts.AccountStatus) error
}

// Service applies admin review actions to submissions and mirrors the outcome
// onto the nurse profile and account. With a SQL database configured, the
// submission, profile, and account writes commit in one transaction; partial
// review outcomes never become visible.
type Service struct {
	db          *sql.DB
	submissions onboarding.SubmissionStore
	profiles    onboarding.ProfileStore
	accounts    AccountSink
	auditor     *audit.Publisher
	logger      *slog.Logger
}

func NewService(
	db *sql.DB,
	submissions onboarding.SubmissionStore,
	profiles onboarding.ProfileStore,
	accountSink AccountSink,
	auditor *audit.Publisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:          db,
		submissions: submissions,
		profiles:    profiles,
		accounts:    accountSink,
		auditor:     auditor,
		logger:      logger,
	}
}

// SubmissionView pairs a submission with its action history.
type SubmissionView struct {
	Submission *onboarding.Submission
	Actions    []onboarding.ActionEntry
}

// Get loads a submission and its append-only action log.
func (s *Service) Get(ctx context.Context, submissionID id.SubmissionID) (*SubmissionView, error) {
	submission, err := s.submissions.Find(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "submission not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeStoreUnavailable, "submission store unreachable", err)
	}
	actions, err := s.submissions.ListActions(ctx, submissionID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeStoreUnavailable, "submission store unreachable", err)
	}
	return &SubmissionView{Submission: submission, Actions: actions}, nil
}

// Apply performs one review action and records it in the action log.
//
// Errors: CodeNotFound for an unknown submission, CodeConflict when the action
// is not valid from the submission's current status, CodeStoreUnavailable on
// persistence failure.
func (s *Service) Apply(ctx context.Context, adminID id.UserID, submissionID id.SubmissionID, action Action, note string) (*onboarding.Submission, error) {
	var result *onboarding.Submission

	err := s.inTx(ctx, func(ctx context.Context) error {
		submission, err := s.submissions.Find(ctx, submissionID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "submission not found")
			}
			return dErrors.Wrap(dErrors.CodeStoreUnavailable, "submission store unreachable", err)
		}

		if !CanApply(action, submission.Status) {
			return dErrors.New(dErrors.CodeConflict,
				fmt.Sprintf("cannot %s a submission in status %s", action, submission.Status))
		}

		now := requestcontext.Now(ctx)
		next := resultStatus[action]
		if err := s.submissions.SetStatus(ctx, submissionID, next, now); err != nil {
			return dErrors.Wrap(dErrors.CodeStoreUnavailable, "submission store unreachable", err)
		}
		if err := s.submissions.AppendAction(ctx, submissionID, onboarding.ActionEntry{
			AdminID: adminID,
			Action:  string(action),
			Note:    note,
			At:      now,
		}); err != nil {
			return dErrors.Wrap(dErrors.CodeStoreUnavailable, "submission store unreachable", err)
		}

		if err := s.mirrorOutcome(ctx, submission.UserID, action); err != nil {
			return err
		}

		submission.Status = next
		submission.UpdatedAt = now
		result = submission
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = s.auditor.Emit(ctx, audit.Event{
		Category: audit.CategoryCompliance,
		UserID:   result.UserID,
		ActorID:  adminID.String(),
		Action:   auditAction(action),
		Reason:   note,
	})
	s.logger.InfoContext(ctx, "review action applied",
		"request_id", requestcontext.RequestID(ctx),
		"submission_id", submissionID.String(),
		"admin_id", adminID.String(),
		"action", string(action),
		"status", string(result.Status),
	)
	return result, nil
}

// mirrorOutcome propagates a terminal review outcome to the profile and
// account records. Starting a review changes neither.
func (s *Service) mirrorOutcome(ctx context.Context, userID id.UserID, action Action) error {
	switch action {
	case ActionApprove:
		if err := s.profiles.SetCompletionStatus(ctx, userID, onboarding.StatusApproved); err != nil {
			return dErrors.Wrap(dErrors.CodeStoreUnavailable, "profile store unreachable", err)
		}
		return s.accounts.SetStatus(ctx, userID, accounts.AccountVerified)
	case ActionReject:
		if err := s.profiles.SetCompletionStatus(ctx, userID, onboarding.StatusRejected); err != nil {
			return dErrors.Wrap(dErrors.CodeStoreUnavailable, "profile store unreachable", err)
		}
		return s.accounts.SetStatus(ctx, userID, accounts.AccountRejected)
	case ActionRequestChanges:
		// The nurse goes back to the end of the step flow to amend and
		// resubmit; the account stays pending.
		if err := s.profiles.SetCompletionStatus(ctx, userID, onboarding.StatusStep3Completed); err != nil {
			return dErrors.Wrap(dErrors.CodeStoreUnavailable, "profile store unreachable", err)
		}
		return nil
	default:
		return nil
	}
}

// inTx runs fn inside a SQL transaction when a database is configured. The
// memory stores ignore the transaction and apply writes directly.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.db == nil {
		return fn(ctx)
	}

	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeStoreUnavailable, "failed to begin transaction", err)
	}
	if err := fn(tx.WithTx(ctx, txn)); err != nil {
		if rbErr := txn.Rollback(); rbErr != nil {
			s.logger.ErrorContext(ctx, "transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := txn.Commit(); err != nil {
		return dErrors.Wrap(dErrors.CodeStoreUnavailable, "failed to commit transaction", err)
	}
	return nil
}

func auditAction(action Action) audit.Action {
	switch action {
	case ActionStartReview:
		return audit.EventReviewStarted
	case ActionApprove:
		return audit.EventReviewApproved
	case ActionReject:
		return audit.EventReviewRejected
	default:
		return audit.EventChangesRequired
	}
}
