package access

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"carebridge/internal/accounts"
	"carebridge/internal/access/metrics"
	"carebridge/internal/audit"
	"carebridge/internal/onboarding"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/requestcontext"
	"carebridge/pkg/sentinel"
)

const gatherTimeout = 5 * time.Second

// AccountSource is the slice of the account collaborator this module needs.
type AccountSource interface {
	Get(ctx context.Context, userID id.UserID) (*accounts.Account, error)
}

// ProfileSource reads nurse profiles.
type ProfileSource interface {
	Find(ctx context.Context, userID id.UserID) (*onboarding.NurseProfile, error)
}

// SubmissionSource reads active submissions.
type SubmissionSource interface {
	FindActive(ctx context.Context, userID id.UserID) (*onboarding.Submission, error)
}

// Service computes access decisions. It gathers the three state inputs,
// delegates to the pure Evaluate rules, and translates store failures into a
// fail-closed decision. Decisions are recomputed on every call and never
// cached beyond the request.
type Service struct {
	accounts    AccountSource
	profiles    ProfileSource
	submissions SubmissionSource
	auditor     *audit.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewService(
	accountSource AccountSource,
	profiles ProfileSource,
	submissions SubmissionSource,
	auditor *audit.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		accounts:    accountSource,
		profiles:    profiles,
		submissions: submissions,
		auditor:     auditor,
		metrics:     m,
		logger:      logger,
	}
}

// EvaluateAccess computes the caller's decision from current state.
//
// Non-nurse roles get full access: the completion workflow only gates nurses,
// and patient/admin surfaces carry their own authorization.
//
// On store failure the returned decision is the fail-closed deny and the
// error carries CodeStoreUnavailable so operators can see the cause; callers
// must use the decision, not the error, for end-user behavior.
func (s *Service) EvaluateAccess(ctx context.Context, userID id.UserID) (AccessDecision, error) {
	tracer := otel.Tracer("carebridge/access")
	ctx, span := tracer.Start(ctx, "access.evaluate")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.ObserveEvaluateLatency(time.Since(start)) }()

	account, err := s.accounts.Get(ctx, userID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			// No account at all: treat as an unknown caller and fail closed.
			return StoreUnavailableDecision(), dErrors.Wrap(dErrors.CodeStoreUnavailable, "account not found during access evaluation", err)
		}
		return StoreUnavailableDecision(), err
	}
	if account.Role != id.RoleNurse {
		return fullAccess(), nil
	}

	input, err := s.gatherState(ctx, userID, account)
	if err != nil {
		s.logger.ErrorContext(ctx, "access state gathering failed, denying",
			"error", err,
			"user_id", userID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return StoreUnavailableDecision(), dErrors.Wrap(dErrors.CodeStoreUnavailable, "access state unavailable", err)
	}

	span.SetAttributes(
		attribute.String("account_status", string(input.AccountStatus)),
		attribute.String("completion_status", string(input.CompletionStatus)),
		attribute.Bool("active_submission", input.HasActiveSubmission),
	)

	decision := Evaluate(input)
	if decision.Reason == ReasonUnknownState {
		// Fail-closed fallback fired: a status value we don't recognize.
		// Still a valid deny for the user; loud for operators.
		s.metrics.IncrementUnknownState(string(input.CompletionStatus))
		s.logger.ErrorContext(ctx, "unknown completion status, fail-closed deny",
			"completion_status", string(input.CompletionStatus),
			"account_status", string(input.AccountStatus),
			"user_id", userID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		_ = s.auditor.Emit(ctx, audit.Event{
			Category: audit.CategorySecurity,
			UserID:   userID,
			Action:   audit.EventUnknownState,
			Reason:   string(input.CompletionStatus),
		})
	}
	return decision, nil
}

// gatherState loads completion and submission state concurrently. A missing
// profile means onboarding has not started; a missing active submission is a
// normal state, not an error.
func (s *Service) gatherState(ctx context.Context, userID id.UserID, account *accounts.Account) (DecisionInput, error) {
	ctx, cancel := context.WithTimeout(ctx, gatherTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	input := DecisionInput{
		AccountStatus:    account.Status,
		CompletionStatus: onboarding.StatusNotStarted,
	}

	g.Go(func() error {
		profile, err := s.profiles.Find(ctx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return err
		}
		input.CompletionStatus = profile.CompletionStatus
		return nil
	})

	g.Go(func() error {
		submission, err := s.submissions.FindActive(ctx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return err
		}
		input.HasActiveSubmission = submission != nil
		return nil
	})

	if err := g.Wait(); err != nil {
		return DecisionInput{}, err
	}
	return input, nil
}
