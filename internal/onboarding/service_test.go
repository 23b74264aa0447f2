package onboarding

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"carebridge/internal/accounts"
	"carebridge/internal/audit"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/requestcontext"
)

type WorkflowSuite struct {
	suite.Suite
	ctx context.Context
	now time.Time

	accountStore    *accounts.InMemoryStore
	profileStore    *InMemoryProfileStore
	submissionStore *InMemorySubmissionStore
	auditStore      *audit.InMemoryStore
	workflow        *Workflow

	nurseID id.UserID
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

func (s *WorkflowSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.accountStore = accounts.NewInMemoryStore()
	s.profileStore = NewInMemoryProfileStore()
	s.submissionStore = NewInMemorySubmissionStore()
	s.auditStore = audit.NewInMemoryStore()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.workflow = NewWorkflow(
		accounts.NewService(s.accountStore),
		s.profileStore,
		s.submissionStore,
		audit.NewPublisher(s.auditStore, nil, logger),
		nil,
		logger,
	)

	s.nurseID = id.UserID(uuid.New())
	s.Require().NoError(s.accountStore.Create(s.ctx, &accounts.Account{
		UserID: s.nurseID,
		Role:   id.RoleNurse,
		Status: accounts.AccountPending,
	}))
}

func (s *WorkflowSuite) payload(step int) json.RawMessage {
	switch step {
	case 1:
		return json.RawMessage(`{"license_number":"RN-12345","license_state":"CA"}`)
	case 2:
		return json.RawMessage(`{"years_experience":6,"specialties":["icu"]}`)
	default:
		return json.RawMessage(`{"documents":[{"file_name":"cert.pdf"}]}`)
	}
}

func (s *WorkflowSuite) completeSteps(steps ...int) {
	for _, step := range steps {
		s.Require().NoError(s.workflow.SaveStep(s.ctx, s.nurseID, step, s.payload(step)))
	}
}

// -----------------------------------------------------------------------------
// GetStatus
// -----------------------------------------------------------------------------

func (s *WorkflowSuite) TestGetStatusCreatesProfileOnFirstTouch() {
	view, err := s.workflow.GetStatus(s.ctx, s.nurseID)
	s.Require().NoError(err)
	s.Equal(StatusNotStarted, view.Status)
	s.False(view.Step1Completed)

	profile, err := s.profileStore.Find(s.ctx, s.nurseID)
	s.Require().NoError(err)
	s.Equal(s.nurseID, profile.UserID)

	events, err := s.auditStore.ListByUser(s.ctx, s.nurseID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.EventProfileCreated, events[0].Action)
}

func (s *WorkflowSuite) TestGetStatusRejectsNonNurse() {
	patientID := id.UserID(uuid.New())
	s.Require().NoError(s.accountStore.Create(s.ctx, &accounts.Account{
		UserID: patientID,
		Role:   id.RolePatient,
		Status: accounts.AccountPending,
	}))

	_, err := s.workflow.GetStatus(s.ctx, patientID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotNurse))
}

// -----------------------------------------------------------------------------
// SaveStep ordering
// -----------------------------------------------------------------------------

func (s *WorkflowSuite) TestSaveStepEnforcesOrdering() {
	s.Run("step 2 before step 1 is a sequence violation", func() {
		err := s.workflow.SaveStep(s.ctx, s.nurseID, 2, s.payload(2))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeSequenceViolation))
	})

	s.Run("violation names the first missing prerequisite", func() {
		err := s.workflow.SaveStep(s.ctx, s.nurseID, 3, s.payload(3))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeSequenceViolation))
		s.Contains(err.Error(), "step 3 requires step 1")
	})

	s.Run("step 3 before step 2 is a sequence violation", func() {
		s.completeSteps(1)
		err := s.workflow.SaveStep(s.ctx, s.nurseID, 3, s.payload(3))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeSequenceViolation))
		s.Contains(err.Error(), "step 3 requires step 2")
	})

	s.Run("in-order saves advance the status", func() {
		s.completeSteps(2, 3)
		profile, err := s.profileStore.Find(s.ctx, s.nurseID)
		s.Require().NoError(err)
		s.Equal(StatusStep3Completed, profile.CompletionStatus)
		s.True(profile.AllStepsCompleted())
	})
}

func (s *WorkflowSuite) TestSaveStepRejectsInvalidInput() {
	err := s.workflow.SaveStep(s.ctx, s.nurseID, 4, s.payload(1))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	err = s.workflow.SaveStep(s.ctx, s.nurseID, 0, s.payload(1))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	err = s.workflow.SaveStep(s.ctx, s.nurseID, 1, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *WorkflowSuite) TestSaveStepIsIdempotent() {
	s.completeSteps(1)
	first, err := s.profileStore.Find(s.ctx, s.nurseID)
	s.Require().NoError(err)
	s.Require().NotNil(first.Step1CompletedAt)

	// Re-save with a later request time and a different payload.
	laterCtx := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))
	newPayload := json.RawMessage(`{"license_number":"RN-99999","license_state":"NY"}`)
	s.Require().NoError(s.workflow.SaveStep(laterCtx, s.nurseID, 1, newPayload))

	second, err := s.profileStore.Find(s.ctx, s.nurseID)
	s.Require().NoError(err)
	s.JSONEq(string(newPayload), string(second.Step1Payload), "payload is rewritten")
	s.Equal(first.Step1CompletedAt, second.Step1CompletedAt, "first completion timestamp is kept")
	s.True(second.Step1Completed)
}

func (s *WorkflowSuite) TestReSavingEarlierStepNeverRegressesStatus() {
	s.completeSteps(1, 2, 3)

	s.Require().NoError(s.workflow.SaveStep(s.ctx, s.nurseID, 1, s.payload(1)))

	profile, err := s.profileStore.Find(s.ctx, s.nurseID)
	s.Require().NoError(err)
	s.Equal(StatusStep3Completed, profile.CompletionStatus)
	s.True(profile.Step2Completed)
	s.True(profile.Step3Completed)
}

// -----------------------------------------------------------------------------
// Submit
// -----------------------------------------------------------------------------

func (s *WorkflowSuite) TestSubmitRequiresAllSteps() {
	s.completeSteps(1, 2)

	err := s.workflow.Submit(s.ctx, s.nurseID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIncompleteProfile))

	_, err = s.submissionStore.FindActive(s.ctx, s.nurseID)
	s.Require().Error(err, "no submission may exist after a failed submit")
}

func (s *WorkflowSuite) TestSubmitCreatesSubmissionAndMarksProfile() {
	s.completeSteps(1, 2, 3)

	s.Require().NoError(s.workflow.Submit(s.ctx, s.nurseID))

	submission, err := s.submissionStore.FindActive(s.ctx, s.nurseID)
	s.Require().NoError(err)
	s.Equal(SubmissionPending, submission.Status)

	profile, err := s.profileStore.Find(s.ctx, s.nurseID)
	s.Require().NoError(err)
	s.Equal(StatusSubmitted, profile.CompletionStatus)
	s.Require().NotNil(profile.SubmittedAt)
	s.Equal(s.now, *profile.SubmittedAt)
}

func (s *WorkflowSuite) TestSubmitTwiceIsDuplicate() {
	s.completeSteps(1, 2, 3)
	s.Require().NoError(s.workflow.Submit(s.ctx, s.nurseID))

	err := s.workflow.Submit(s.ctx, s.nurseID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateSubmission))
}

func (s *WorkflowSuite) TestConcurrentSubmitsCreateExactlyOneSubmission() {
	s.completeSteps(1, 2, 3)

	const submitters = 8
	var wg sync.WaitGroup
	errs := make([]error, submitters)
	for i := range submitters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.workflow.Submit(s.ctx, s.nurseID)
		}()
	}
	wg.Wait()

	var succeeded, duplicates int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case dErrors.HasCode(err, dErrors.CodeDuplicateSubmission):
			duplicates++
		default:
			s.FailNowf("unexpected submit error", "%v", err)
		}
	}
	s.Equal(1, succeeded)
	s.Equal(submitters-1, duplicates)
}

// -----------------------------------------------------------------------------
// CanAccessStep
// -----------------------------------------------------------------------------

func (s *WorkflowSuite) TestCanAccessStep() {
	s.Run("step 1 is always reachable", func() {
		ok, err := s.workflow.CanAccessStep(s.ctx, s.nurseID, 1)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("later steps unreachable without predecessors", func() {
		ok, err := s.workflow.CanAccessStep(s.ctx, s.nurseID, 2)
		s.Require().NoError(err)
		s.False(ok)

		ok, err = s.workflow.CanAccessStep(s.ctx, s.nurseID, 3)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("completing steps unlocks successors", func() {
		s.completeSteps(1)
		ok, err := s.workflow.CanAccessStep(s.ctx, s.nurseID, 2)
		s.Require().NoError(err)
		s.True(ok)

		ok, err = s.workflow.CanAccessStep(s.ctx, s.nurseID, 3)
		s.Require().NoError(err)
		s.False(ok, "step 3 needs both predecessors")
	})

	s.Run("check does not create a profile", func() {
		freshID := id.UserID(uuid.New())
		s.Require().NoError(s.accountStore.Create(s.ctx, &accounts.Account{
			UserID: freshID,
			Role:   id.RoleNurse,
			Status: accounts.AccountPending,
		}))

		_, err := s.workflow.CanAccessStep(s.ctx, freshID, 2)
		s.Require().NoError(err)
		_, err = s.profileStore.Find(s.ctx, freshID)
		s.Require().Error(err)
	})
}
