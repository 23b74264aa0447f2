package review

import (
	"carebridge/internal/onboarding"
	dErrors "carebridge/pkg/domain-errors"
)

// Action is one admin operation on a submission.
type Action string

const (
	ActionStartReview    Action = "start_review"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionRequestChanges Action = "request_changes"
)

// ParseAction constructs an Action from external input.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionStartReview, ActionApprove, ActionReject, ActionRequestChanges:
		return Action(s), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported review action: "+s)
	}
}

// allowedTransitions maps each action to the submission statuses it may be
// applied from. Terminal statuses accept no further actions.
var allowedTransitions = map[Action][]onboarding.SubmissionStatus{
	ActionStartReview:    {onboarding.SubmissionPending},
	ActionApprove:        {onboarding.SubmissionPending, onboarding.SubmissionUnderReview},
	ActionReject:         {onboarding.SubmissionPending, onboarding.SubmissionUnderReview},
	ActionRequestChanges: {onboarding.SubmissionPending, onboarding.SubmissionUnderReview},
}

// resultStatus is the submission status each action lands on.
var resultStatus = map[Action]onboarding.SubmissionStatus{
	ActionStartReview:    onboarding.SubmissionUnderReview,
	ActionApprove:        onboarding.SubmissionApproved,
	ActionReject:         onboarding.SubmissionRejected,
	ActionRequestChanges: onboarding.SubmissionRequiresChanges,
}

// CanApply reports whether the action is valid from the given status.
func CanApply(action Action, from onboarding.SubmissionStatus) bool {
	for _, status := range allowedTransitions[action] {
		if status == from {
			return true
		}
	}
	return false
}
