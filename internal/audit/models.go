package audit

import (
	"time"

	id "carebridge/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// profile submissions, review outcomes, account status changes.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring:
	// access denials, unknown-state fallbacks, admin token misuse.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility: step saves, routine access grants.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    id.UserID     `json:"user_id"`
	Action    Action        `json:"action"`
	Decision  string        `json:"decision,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	// ActorID tracks who performed the action when different from UserID.
	// Used for admin review actions performed on a nurse's submission.
	ActorID string `json:"actor_id,omitempty"`
}

// Action names an auditable event.
type Action string

const (
	// Onboarding events
	EventProfileCreated   Action = "profile_created"
	EventStepCompleted    Action = "step_completed"
	EventProfileSubmitted Action = "profile_submitted"

	// Review events
	EventReviewStarted   Action = "review_started"
	EventReviewApproved  Action = "review_approved"
	EventReviewRejected  Action = "review_rejected"
	EventChangesRequired Action = "review_changes_required"

	// Access events
	EventAccessDenied Action = "access_denied"
	EventUnknownState Action = "unknown_state_fallback"
)
