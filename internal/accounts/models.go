package accounts

import (
	"time"

	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
)

// AccountStatus tracks administrative verification of an account. It is
// distinct from the profile-side completion status: an account becomes
// verified only after an admin approves the profile submission.
type AccountStatus string

const (
	AccountPending  AccountStatus = "pending"
	AccountVerified AccountStatus = "verified"
	AccountRejected AccountStatus = "rejected"
)

var validAccountStatuses = map[AccountStatus]bool{
	AccountPending:  true,
	AccountVerified: true,
	AccountRejected: true,
}

func (s AccountStatus) IsValid() bool { return validAccountStatuses[s] }

// ParseAccountStatus constructs an AccountStatus from external input.
func ParseAccountStatus(s string) (AccountStatus, error) {
	st := AccountStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported account status: "+s)
	}
	return st, nil
}

// Account is the minimal account view the onboarding and access modules
// consume. Credentials and contact details live with the auth system.
type Account struct {
	UserID    id.UserID
	Role      id.Role
	Status    AccountStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
