package access

import (
	"carebridge/internal/accounts"
	"carebridge/internal/onboarding"
)

// Capability names a protected surface of the platform.
type Capability string

const (
	CapabilityPlatform      Capability = "platform"
	CapabilityDashboard     Capability = "dashboard"
	CapabilityRequests      Capability = "requests"
	CapabilityCreateRequest Capability = "create_request"
	CapabilityProfile       Capability = "profile"
)

// Redirect targets surfaced to UI layers on denial.
const (
	RedirectOnboarding          = "/nurse-profile-complete"
	RedirectVerificationPending = "/verification-pending"
	RedirectAccountRejected     = "/account-rejected"
	RedirectProfileRejected     = "/profile-rejected"
)

// Next actions telling the caller how to make progress.
const (
	ActionCompleteStep1   = "complete_step_1"
	ActionCompleteStep2   = "complete_step_2"
	ActionCompleteStep3   = "complete_step_3"
	ActionSubmitProfile   = "submit_profile"
	ActionWaitForApproval = "wait_for_approval"
	ActionContactSupport  = "contact_support"
	ActionResubmitProfile = "resubmit_profile"
	ActionCompleteProfile = "complete_profile"
	ActionRetryLater      = "retry_later"
)

// Denial reasons.
const (
	ReasonAccountRejected  = "account_rejected"
	ReasonProfileRejected  = "profile_rejected"
	ReasonIncompleteSteps  = "profile_incomplete"
	ReasonAwaitingReview   = "awaiting_review"
	ReasonSubmissionLost   = "submission_missing"
	ReasonUnknownState     = "unknown_state"
	ReasonStoreUnavailable = "store_unavailable"
)

// DecisionInput is the full state the evaluator consumes. It is assembled by
// the service; the evaluator itself performs no I/O.
type DecisionInput struct {
	AccountStatus       accounts.AccountStatus
	CompletionStatus    onboarding.CompletionStatus
	HasActiveSubmission bool
}

// AccessDecision is derived per request and never persisted or cached beyond
// the request's lifetime.
type AccessDecision struct {
	CanAccessPlatform  bool   `json:"can_access_platform"`
	CanAccessDashboard bool   `json:"can_access_dashboard"`
	CanViewRequests    bool   `json:"can_view_requests"`
	CanCreateRequests  bool   `json:"can_create_requests"`
	CanAccessProfile   bool   `json:"can_access_profile"`
	RedirectTo         string `json:"redirect_to,omitempty"`
	Reason             string `json:"reason,omitempty"`
	NextRequiredAction string `json:"next_required_action,omitempty"`
}

// Allows maps a capability to its decision flag.
func (d AccessDecision) Allows(capability Capability) bool {
	switch capability {
	case CapabilityPlatform:
		return d.CanAccessPlatform
	case CapabilityDashboard:
		return d.CanAccessDashboard
	case CapabilityRequests:
		return d.CanViewRequests
	case CapabilityCreateRequest:
		return d.CanCreateRequests
	case CapabilityProfile:
		return d.CanAccessProfile
	default:
		return false
	}
}

// Evaluate maps account, completion, and submission state to an access
// decision. This is pure domain logic - no I/O, no side effects.
//
// Rule priority (first match wins):
//  1. Verified account - full access, completion state irrelevant.
//  2. Rejected account - access floor, nothing but the rejection page.
//  3. Pending account - branch on completion status to route the nurse to
//     the next onboarding action; unknown values fail closed.
//
// CanAccessProfile is true on every branch: the nurse must always be able to
// reach the onboarding UI itself.
func Evaluate(input DecisionInput) AccessDecision {
	// Rule 1: verified accounts get full access regardless of completion
	// state. This also covers the state-sync lag where the profile still
	// reads submitted after an approval.
	if input.AccountStatus == accounts.AccountVerified {
		return fullAccess()
	}

	// Rule 2: rejected accounts get nothing, regardless of completion state.
	if input.AccountStatus == accounts.AccountRejected {
		return denied(RedirectAccountRejected, ReasonAccountRejected, ActionContactSupport)
	}

	// Rule 3: pending account - route by onboarding progress.
	switch input.CompletionStatus {
	case onboarding.StatusNotStarted:
		return denied(RedirectOnboarding, ReasonIncompleteSteps, ActionCompleteStep1)
	case onboarding.StatusStep1Completed:
		return denied(RedirectOnboarding, ReasonIncompleteSteps, ActionCompleteStep2)
	case onboarding.StatusStep2Completed:
		return denied(RedirectOnboarding, ReasonIncompleteSteps, ActionCompleteStep3)
	case onboarding.StatusStep3Completed:
		return denied(RedirectOnboarding, ReasonIncompleteSteps, ActionSubmitProfile)
	case onboarding.StatusSubmitted:
		if input.HasActiveSubmission {
			return denied(RedirectVerificationPending, ReasonAwaitingReview, ActionWaitForApproval)
		}
		// Submission processed but account status not yet mirrored; have the
		// nurse contact support rather than resubmit into a closed review.
		return denied(RedirectVerificationPending, ReasonSubmissionLost, ActionContactSupport)
	case onboarding.StatusApproved:
		// Defensive duplicate of rule 1: approval reached the profile before
		// the account record.
		return fullAccess()
	case onboarding.StatusRejected:
		return denied(RedirectProfileRejected, ReasonProfileRejected, ActionResubmitProfile)
	default:
		// Unrecognized status - fail safe to no access and send the nurse to
		// onboarding. The service logs these for investigation.
		return denied(RedirectOnboarding, ReasonUnknownState, ActionCompleteProfile)
	}
}

func fullAccess() AccessDecision {
	return AccessDecision{
		CanAccessPlatform:  true,
		CanAccessDashboard: true,
		CanViewRequests:    true,
		CanCreateRequests:  true,
		CanAccessProfile:   true,
	}
}

func denied(redirectTo, reason, nextAction string) AccessDecision {
	return AccessDecision{
		CanAccessProfile:   true,
		RedirectTo:         redirectTo,
		Reason:             reason,
		NextRequiredAction: nextAction,
	}
}

// StoreUnavailableDecision is the fail-closed decision used when state cannot
// be loaded. Denial, never a crash and never fail-open.
func StoreUnavailableDecision() AccessDecision {
	return AccessDecision{
		CanAccessProfile:   true,
		RedirectTo:         RedirectOnboarding,
		Reason:             ReasonStoreUnavailable,
		NextRequiredAction: ActionRetryLater,
	}
}
