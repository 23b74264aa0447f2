package onboarding

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	id "carebridge/pkg/domain"
	"carebridge/pkg/sentinel"
)

// InMemoryProfileStore is the test and single-node implementation of
// ProfileStore. The mutex makes every SaveStep an atomic
// check-precondition-and-write, matching the conditional-update semantics of
// the SQL store.
type InMemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[id.UserID]*NurseProfile
}

func NewInMemoryProfileStore() *InMemoryProfileStore {
	return &InMemoryProfileStore{profiles: make(map[id.UserID]*NurseProfile)}
}

func (s *InMemoryProfileStore) Find(_ context.Context, userID id.UserID) (*NurseProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *profile
	return &cp, nil
}

func (s *InMemoryProfileStore) Create(_ context.Context, profile *NurseProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.UserID]; ok {
		return sentinel.ErrConflict
	}
	cp := *profile
	s.profiles[profile.UserID] = &cp
	return nil
}

func (s *InMemoryProfileStore) SaveStep(_ context.Context, userID id.UserID, step int, payload json.RawMessage, at time.Time) (*NurseProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	// Precondition check and write happen under one lock: the ordering
	// invariant can never be bypassed by a stale read.
	switch step {
	case 2:
		if !profile.Step1Completed {
			return nil, sentinel.ErrPreconditionFailed
		}
	case 3:
		if !profile.Step1Completed || !profile.Step2Completed {
			return nil, sentinel.ErrPreconditionFailed
		}
	}

	switch step {
	case 1:
		profile.Step1Payload = payload
		if !profile.Step1Completed {
			profile.Step1Completed = true
			ts := at
			profile.Step1CompletedAt = &ts
		}
	case 2:
		profile.Step2Payload = payload
		if !profile.Step2Completed {
			profile.Step2Completed = true
			ts := at
			profile.Step2CompletedAt = &ts
		}
	case 3:
		profile.Step3Payload = payload
		if !profile.Step3Completed {
			profile.Step3Completed = true
			ts := at
			profile.Step3CompletedAt = &ts
		}
	}

	// Never regress: re-saving step 1 after step 2 keeps step_2_completed.
	if next := StatusForStep(step); profile.CompletionStatus.Rank() < next.Rank() {
		profile.CompletionStatus = next
	}
	profile.UpdatedAt = at

	cp := *profile
	return &cp, nil
}

func (s *InMemoryProfileStore) MarkSubmitted(_ context.Context, userID id.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !profile.AllStepsCompleted() {
		return sentinel.ErrInvalidState
	}
	profile.CompletionStatus = StatusSubmitted
	ts := at
	profile.SubmittedAt = &ts
	profile.UpdatedAt = at
	return nil
}

func (s *InMemoryProfileStore) SetCompletionStatus(_ context.Context, userID id.UserID, status CompletionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	profile.CompletionStatus = status
	return nil
}

// InMemorySubmissionStore is the test and single-node implementation of
// SubmissionStore. Uniqueness of active submissions is enforced under the
// same lock as creation, mirroring the partial unique index in SQL.
type InMemorySubmissionStore struct {
	mu          sync.RWMutex
	submissions map[id.SubmissionID]*Submission
	actions     map[id.SubmissionID][]ActionEntry
}

func NewInMemorySubmissionStore() *InMemorySubmissionStore {
	return &InMemorySubmissionStore{
		submissions: make(map[id.SubmissionID]*Submission),
		actions:     make(map[id.SubmissionID][]ActionEntry),
	}
}

func (s *InMemorySubmissionStore) Create(_ context.Context, submission *Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.submissions {
		if existing.UserID == submission.UserID && existing.Status.IsActive() {
			return sentinel.ErrConflict
		}
	}
	cp := *submission
	s.submissions[submission.ID] = &cp
	return nil
}

func (s *InMemorySubmissionStore) Find(_ context.Context, submissionID id.SubmissionID) (*Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	submission, ok := s.submissions[submissionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *submission
	return &cp, nil
}

func (s *InMemorySubmissionStore) FindActive(_ context.Context, userID id.UserID) (*Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, submission := range s.submissions {
		if submission.UserID == userID && submission.Status.IsActive() {
			cp := *submission
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemorySubmissionStore) SetStatus(_ context.Context, submissionID id.SubmissionID, status SubmissionStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	submission, ok := s.submissions[submissionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	submission.Status = status
	submission.UpdatedAt = at
	return nil
}

func (s *InMemorySubmissionStore) AppendAction(_ context.Context, submissionID id.SubmissionID, entry ActionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[submissionID]; !ok {
		return sentinel.ErrNotFound
	}
	s.actions[submissionID] = append(s.actions[submissionID], entry)
	return nil
}

func (s *InMemorySubmissionStore) ListActions(_ context.Context, submissionID id.SubmissionID) ([]ActionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.submissions[submissionID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]ActionEntry{}, s.actions[submissionID]...), nil
}
