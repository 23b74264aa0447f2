package onboarding

import (
	"encoding/json"
	"time"

	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
)

// CompletionStatus tracks how far a nurse has progressed through onboarding.
// It moves forward monotonically under normal operation; only an admin
// rejection or a requires-changes outcome moves it backward.
type CompletionStatus string

const (
	StatusNotStarted     CompletionStatus = "not_started"
	StatusStep1Completed CompletionStatus = "step_1_completed"
	StatusStep2Completed CompletionStatus = "step_2_completed"
	StatusStep3Completed CompletionStatus = "step_3_completed"
	StatusSubmitted      CompletionStatus = "submitted"
	StatusApproved       CompletionStatus = "approved"
	StatusRejected       CompletionStatus = "rejected"
)

// completionRank orders statuses for regression checks. Submitted and later
// statuses rank above every step so a step re-save can never pull the status
// backward.
var completionRank = map[CompletionStatus]int{
	StatusNotStarted:     0,
	StatusStep1Completed: 1,
	StatusStep2Completed: 2,
	StatusStep3Completed: 3,
	StatusSubmitted:      4,
	StatusApproved:       5,
	StatusRejected:       4, // rejected profiles keep their step data; rank beside submitted
}

func (s CompletionStatus) IsValid() bool {
	_, ok := completionRank[s]
	return ok
}

// Rank returns the ordering rank, or -1 for unknown values so callers treat
// them as "before everything" and fail closed.
func (s CompletionStatus) Rank() int {
	if r, ok := completionRank[s]; ok {
		return r
	}
	return -1
}

// StatusForStep is the completion status reached when the given step is the
// highest one completed.
func StatusForStep(step int) CompletionStatus {
	switch step {
	case 1:
		return StatusStep1Completed
	case 2:
		return StatusStep2Completed
	case 3:
		return StatusStep3Completed
	default:
		return StatusNotStarted
	}
}

// DocumentDescriptor references an uploaded document by value. The onboarding
// core stores these opaquely; bytes live with the upload collaborator.
type DocumentDescriptor struct {
	FileName    string `json:"file_name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// NurseProfile is the per-nurse onboarding record, created lazily on first
// status query or step save.
//
// Invariants:
//   - StepNCompleted == true implies all steps < N are true.
//   - CompletionStatus is consistent with the highest completed step, or is
//     submitted/approved/rejected once a submission has occurred.
//   - StepNCompletedAt is set on the first transition to true and never
//     changes on re-saves.
type NurseProfile struct {
	ID     id.ProfileID
	UserID id.UserID

	CompletionStatus CompletionStatus

	Step1Completed   bool
	Step1CompletedAt *time.Time
	Step1Payload     json.RawMessage

	Step2Completed   bool
	Step2CompletedAt *time.Time
	Step2Payload     json.RawMessage

	Step3Completed   bool
	Step3CompletedAt *time.Time
	Step3Payload     json.RawMessage

	SubmittedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StepCompleted reports whether the given step is complete.
func (p *NurseProfile) StepCompleted(step int) bool {
	switch step {
	case 1:
		return p.Step1Completed
	case 2:
		return p.Step2Completed
	case 3:
		return p.Step3Completed
	default:
		return false
	}
}

// AllStepsCompleted reports whether the profile is ready for submission.
func (p *NurseProfile) AllStepsCompleted() bool {
	return p.Step1Completed && p.Step2Completed && p.Step3Completed
}

// SubmissionStatus tracks the admin review lifecycle of one submission.
type SubmissionStatus string

const (
	SubmissionPending         SubmissionStatus = "pending"
	SubmissionUnderReview     SubmissionStatus = "under_review"
	SubmissionApproved        SubmissionStatus = "approved"
	SubmissionRejected        SubmissionStatus = "rejected"
	SubmissionRequiresChanges SubmissionStatus = "requires_changes"
)

// IsActive reports whether the submission blocks creation of a new one.
// At most one active submission may exist per user.
func (s SubmissionStatus) IsActive() bool {
	return s == SubmissionPending || s == SubmissionUnderReview
}

// Submission is created exactly once per completed profile submission
// attempt. Its action log is append-only.
type Submission struct {
	ID        id.SubmissionID
	UserID    id.UserID
	ProfileID id.ProfileID
	Status    SubmissionStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActionEntry is one append-only record of an admin acting on a submission.
type ActionEntry struct {
	AdminID id.UserID
	Action  string
	Note    string
	At      time.Time
}

// StatusView is the read model returned to the routing layer. Plain
// structured data; no store types leak through.
type StatusView struct {
	Status         CompletionStatus `json:"status"`
	Step1Completed bool             `json:"step1_completed"`
	Step2Completed bool             `json:"step2_completed"`
	Step3Completed bool             `json:"step3_completed"`
	SubmittedAt    *time.Time       `json:"submitted_at,omitempty"`
}

// ValidateStep rejects step numbers outside 1..3.
func ValidateStep(step int) error {
	if step < 1 || step > 3 {
		return dErrors.New(dErrors.CodeInvalidInput, "step must be 1, 2, or 3")
	}
	return nil
}
