//go:build integration

package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"carebridge/internal/onboarding"
	id "carebridge/pkg/domain"
	"carebridge/pkg/sentinel"
	"carebridge/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg          *containers.PostgresContainer
	profiles    *PostgresProfileStore
	submissions *PostgresSubmissionStore
	ctx         context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())

	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "db", "migrations", "0001_init.sql"))
	s.Require().NoError(err)
	_, err = s.pg.DB.ExecContext(s.ctx, string(schema))
	s.Require().NoError(err)

	s.profiles = NewPostgresProfileStore(s.pg.DB)
	s.submissions = NewPostgresSubmissionStore(s.pg.DB)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	s.pg.Terminate(s.T())
}

func (s *PostgresStoreSuite) newAccount() id.UserID {
	userID := id.UserID(uuid.New())
	_, err := s.pg.DB.ExecContext(s.ctx, `
		INSERT INTO accounts (user_id, role, status, created_at, updated_at)
		VALUES ($1, 'nurse', 'pending', NOW(), NOW())
	`, userID.String())
	s.Require().NoError(err)
	return userID
}

func (s *PostgresStoreSuite) newProfile(userID id.UserID) *onboarding.NurseProfile {
	now := time.Now().UTC().Truncate(time.Microsecond)
	profile := &onboarding.NurseProfile{
		ID:               id.NewProfileID(),
		UserID:           userID,
		CompletionStatus: onboarding.StatusNotStarted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.Require().NoError(s.profiles.Create(s.ctx, profile))
	return profile
}

func (s *PostgresStoreSuite) completeAllSteps(userID id.UserID) {
	now := time.Now().UTC()
	for step := 1; step <= 3; step++ {
		_, err := s.profiles.SaveStep(s.ctx, userID, step, json.RawMessage(`{"ok":true}`), now)
		s.Require().NoError(err)
	}
}

func (s *PostgresStoreSuite) TestProfileLifecycle() {
	userID := s.newAccount()
	created := s.newProfile(userID)

	found, err := s.profiles.Find(s.ctx, userID)
	s.Require().NoError(err)
	s.Equal(created.ID, found.ID)
	s.Equal(onboarding.StatusNotStarted, found.CompletionStatus)

	_, err = s.profiles.Find(s.ctx, id.UserID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().ErrorIs(s.profiles.Create(s.ctx, created), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestSaveStepOrdering() {
	userID := s.newAccount()
	s.newProfile(userID)
	now := time.Now().UTC()

	_, err := s.profiles.SaveStep(s.ctx, userID, 2, json.RawMessage(`{}`), now)
	s.Require().ErrorIs(err, sentinel.ErrPreconditionFailed)

	profile, err := s.profiles.SaveStep(s.ctx, userID, 1, json.RawMessage(`{"license":"RN-1"}`), now)
	s.Require().NoError(err)
	s.Equal(onboarding.StatusStep1Completed, profile.CompletionStatus)
	s.Require().NotNil(profile.Step1CompletedAt)

	profile, err = s.profiles.SaveStep(s.ctx, userID, 2, json.RawMessage(`{}`), now)
	s.Require().NoError(err)
	s.Equal(onboarding.StatusStep2Completed, profile.CompletionStatus)

	_, err = s.profiles.SaveStep(s.ctx, id.UserID(uuid.New()), 1, json.RawMessage(`{}`), now)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSaveStepIdempotence() {
	userID := s.newAccount()
	s.newProfile(userID)
	first := time.Now().UTC().Truncate(time.Microsecond)

	profile, err := s.profiles.SaveStep(s.ctx, userID, 1, json.RawMessage(`{"v":1}`), first)
	s.Require().NoError(err)
	firstCompletedAt := *profile.Step1CompletedAt

	profile, err = s.profiles.SaveStep(s.ctx, userID, 1, json.RawMessage(`{"v":2}`), first.Add(time.Hour))
	s.Require().NoError(err)
	s.JSONEq(`{"v":2}`, string(profile.Step1Payload))
	s.WithinDuration(firstCompletedAt, *profile.Step1CompletedAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestStatusNeverRegresses() {
	userID := s.newAccount()
	s.newProfile(userID)
	s.completeAllSteps(userID)

	profile, err := s.profiles.SaveStep(s.ctx, userID, 1, json.RawMessage(`{"edited":true}`), time.Now().UTC())
	s.Require().NoError(err)
	s.Equal(onboarding.StatusStep3Completed, profile.CompletionStatus)
	s.True(profile.Step3Completed)
}

func (s *PostgresStoreSuite) TestMarkSubmitted() {
	userID := s.newAccount()
	s.newProfile(userID)

	err := s.profiles.MarkSubmitted(s.ctx, userID, time.Now().UTC())
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	s.completeAllSteps(userID)
	s.Require().NoError(s.profiles.MarkSubmitted(s.ctx, userID, time.Now().UTC()))

	profile, err := s.profiles.Find(s.ctx, userID)
	s.Require().NoError(err)
	s.Equal(onboarding.StatusSubmitted, profile.CompletionStatus)
	s.Require().NotNil(profile.SubmittedAt)
}

func (s *PostgresStoreSuite) TestActiveSubmissionUniqueness() {
	userID := s.newAccount()
	profile := s.newProfile(userID)
	s.completeAllSteps(userID)
	now := time.Now().UTC()

	first := &onboarding.Submission{
		ID: id.NewSubmissionID(), UserID: userID, ProfileID: profile.ID,
		Status: onboarding.SubmissionPending, CreatedAt: now, UpdatedAt: now,
	}
	s.Require().NoError(s.submissions.Create(s.ctx, first))

	dup := &onboarding.Submission{
		ID: id.NewSubmissionID(), UserID: userID, ProfileID: profile.ID,
		Status: onboarding.SubmissionPending, CreatedAt: now, UpdatedAt: now,
	}
	s.Require().ErrorIs(s.submissions.Create(s.ctx, dup), sentinel.ErrConflict)

	// A resolved submission frees the slot.
	s.Require().NoError(s.submissions.SetStatus(s.ctx, first.ID, onboarding.SubmissionApproved, now))
	s.Require().NoError(s.submissions.Create(s.ctx, dup))
}

func (s *PostgresStoreSuite) TestConcurrentSubmissionCreation() {
	userID := s.newAccount()
	profile := s.newProfile(userID)
	s.completeAllSteps(userID)
	now := time.Now().UTC()

	const attempts = 8
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.submissions.Create(s.ctx, &onboarding.Submission{
				ID: id.NewSubmissionID(), UserID: userID, ProfileID: profile.ID,
				Status: onboarding.SubmissionPending, CreatedAt: now, UpdatedAt: now,
			})
		}()
	}
	wg.Wait()

	var created int
	for _, err := range results {
		if err == nil {
			created++
		} else {
			s.Require().ErrorIs(err, sentinel.ErrConflict)
		}
	}
	s.Equal(1, created)
}

func (s *PostgresStoreSuite) TestActionLog() {
	userID := s.newAccount()
	profile := s.newProfile(userID)
	s.completeAllSteps(userID)
	now := time.Now().UTC().Truncate(time.Microsecond)

	submission := &onboarding.Submission{
		ID: id.NewSubmissionID(), UserID: userID, ProfileID: profile.ID,
		Status: onboarding.SubmissionPending, CreatedAt: now, UpdatedAt: now,
	}
	s.Require().NoError(s.submissions.Create(s.ctx, submission))

	adminID := id.UserID(uuid.New())
	s.Require().NoError(s.submissions.AppendAction(s.ctx, submission.ID, onboarding.ActionEntry{
		AdminID: adminID, Action: "start_review", At: now,
	}))
	s.Require().NoError(s.submissions.AppendAction(s.ctx, submission.ID, onboarding.ActionEntry{
		AdminID: adminID, Action: "approve", Note: "verified", At: now.Add(time.Minute),
	}))

	entries, err := s.submissions.ListActions(s.ctx, submission.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("start_review", entries[0].Action)
	s.Equal("approve", entries[1].Action)
	s.Equal("verified", entries[1].Note)

	err = s.submissions.AppendAction(s.ctx, id.NewSubmissionID(), onboarding.ActionEntry{
		AdminID: adminID, Action: "approve", At: now,
	})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
