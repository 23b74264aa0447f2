// Package domain holds typed identifiers shared across modules.
//
// IDs are distinct types over uuid.UUID so the compiler rejects cross-type
// assignment (a SubmissionID can never be passed where a UserID is expected).
// Construct them via the Parse functions at trust boundaries; direct casting
// bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "carebridge/pkg/domain-errors"
)

type (
	// UserID identifies an account holder (nurse, patient, or admin).
	UserID uuid.UUID
	// ProfileID identifies a nurse profile record.
	ProfileID uuid.UUID
	// SubmissionID identifies a review submission.
	SubmissionID uuid.UUID
)

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id ProfileID) String() string    { return uuid.UUID(id).String() }
func (id SubmissionID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ProfileID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SubmissionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// NewProfileID generates a fresh profile identifier.
func NewProfileID() ProfileID { return ProfileID(uuid.New()) }

// NewSubmissionID generates a fresh submission identifier.
func NewSubmissionID() SubmissionID { return SubmissionID(uuid.New()) }

// ParseUserID constructs a UserID from external input.
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseProfileID constructs a ProfileID from external input.
func ParseProfileID(s string) (ProfileID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ProfileID{}, err
	}
	return ProfileID(u), nil
}

// ParseSubmissionID constructs a SubmissionID from external input.
func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return SubmissionID{}, err
	}
	return SubmissionID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}
