package access

import (
	"context"
	"path"
	"strings"

	"carebridge/internal/access/metrics"
	"carebridge/internal/audit"
	id "carebridge/pkg/domain"
)

// Caller identifies the authenticated principal asking for access.
type Caller struct {
	UserID id.UserID
	Role   id.Role
}

// Decision is the enforcer's verdict. On denial, Meta tells the caller how to
// make progress instead of a bare 403.
type Decision struct {
	Allowed bool
	Meta    DenyMetadata
}

// DenyMetadata is returned with every denial so UI and API clients can route
// the user without re-deriving state.
type DenyMetadata struct {
	Reason             string `json:"reason"`
	RedirectTo         string `json:"redirect_to,omitempty"`
	NextRequiredAction string `json:"next_required_action,omitempty"`
	CurrentStep        string `json:"current_step,omitempty"`
}

// Allow is the affirmative decision.
func Allow() Decision { return Decision{Allowed: true} }

// AllowRule exempts a (capability, path pattern) pair from evaluation.
// Patterns use path.Match syntax against the request path, except that a
// trailing "/*" also matches every deeper sub-path, so one rule can cover a
// whole route subtree.
type AllowRule struct {
	Capability Capability
	Pattern    string
}

// DefaultAllowRules lists the paths that must stay reachable while a nurse is
// still onboarding: auth, the onboarding endpoints themselves, and the basic
// profile view.
func DefaultAllowRules() []AllowRule {
	return []AllowRule{
		{Capability: CapabilityPlatform, Pattern: "/auth/*"},
		{Capability: CapabilityPlatform, Pattern: "/nurse/profile/*"},
		{Capability: CapabilityPlatform, Pattern: "/nurse/access"},
		{Capability: CapabilityProfile, Pattern: "/*"},
	}
}

// Evaluator is the decision source the enforcer consults.
type Evaluator interface {
	EvaluateAccess(ctx context.Context, userID id.UserID) (AccessDecision, error)
}

// Enforcer applies access decisions to concrete requests. It is the single
// choke point in front of every protected handler.
type Enforcer struct {
	evaluator Evaluator
	allowed   []AllowRule
	auditor   *audit.Publisher
	metrics   *metrics.Metrics
}

func NewEnforcer(evaluator Evaluator, allowed []AllowRule, auditor *audit.Publisher, m *metrics.Metrics) *Enforcer {
	return &Enforcer{
		evaluator: evaluator,
		allowed:   allowed,
		auditor:   auditor,
		metrics:   m,
	}
}

// Authorize decides whether the caller may exercise the capability on the
// given request path.
//
// Non-nurse callers bypass evaluation entirely: the onboarding gate only
// applies to nurses. Allow-listed (capability, path) pairs also bypass so the
// onboarding surface itself stays reachable.
//
// Denial is normal control flow, never an error: when the underlying stores
// are unreachable the caller is denied (fail closed) with a retryable reason.
func (e *Enforcer) Authorize(ctx context.Context, caller Caller, capability Capability, requestPath string) Decision {
	if caller.Role != id.RoleNurse {
		e.metrics.IncrementDecision(string(capability), "bypass")
		return Allow()
	}

	for _, rule := range e.allowed {
		if rule.Capability != capability {
			continue
		}
		if matchesPath(rule.Pattern, requestPath) {
			e.metrics.IncrementDecision(string(capability), "bypass")
			return Allow()
		}
	}

	decision, err := e.evaluator.EvaluateAccess(ctx, caller.UserID)
	if err != nil {
		// The evaluator already produced a fail-closed decision; the error is
		// operator-facing only, but the denial itself still belongs in the
		// audit trail.
		e.metrics.IncrementDecision(string(capability), "deny")
		_ = e.auditor.Emit(ctx, audit.Event{
			Category: audit.CategoryOperations,
			UserID:   caller.UserID,
			Action:   audit.EventAccessDenied,
			Decision: string(capability),
			Reason:   decision.Reason,
		})
		return Decision{Allowed: false, Meta: denyMetadata(decision)}
	}

	if decision.Allows(capability) {
		e.metrics.IncrementDecision(string(capability), "allow")
		return Allow()
	}

	e.metrics.IncrementDecision(string(capability), "deny")
	_ = e.auditor.Emit(ctx, audit.Event{
		Category: audit.CategoryOperations,
		UserID:   caller.UserID,
		Action:   audit.EventAccessDenied,
		Decision: string(capability),
		Reason:   decision.Reason,
	})
	return Decision{Allowed: false, Meta: denyMetadata(decision)}
}

// matchesPath applies path.Match, with a trailing "/*" additionally matching
// any deeper sub-path. path.Match alone stops "*" at segment boundaries,
// which would leave multi-segment routes like /nurse/profile/steps/2 outside
// a /nurse/profile/* rule.
func matchesPath(pattern, requestPath string) bool {
	if ok, err := path.Match(pattern, requestPath); err == nil && ok {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(requestPath, prefix+"/")
	}
	return false
}

func denyMetadata(decision AccessDecision) DenyMetadata {
	return DenyMetadata{
		Reason:             decision.Reason,
		RedirectTo:         decision.RedirectTo,
		NextRequiredAction: decision.NextRequiredAction,
		CurrentStep:        currentStep(decision.NextRequiredAction),
	}
}

// currentStep extracts the step the nurse is currently on from the next
// required action, when there is one.
func currentStep(nextAction string) string {
	switch nextAction {
	case ActionCompleteStep1:
		return "1"
	case ActionCompleteStep2:
		return "2"
	case ActionCompleteStep3:
		return "3"
	case ActionSubmitProfile:
		return "3"
	default:
		return ""
	}
}
