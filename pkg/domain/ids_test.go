package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "carebridge/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// IDs must be valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
	})
}

// TestParseFunctions_Consistency ensures every ID type applies the same
// validation at the boundary.
func TestParseFunctions_Consistency(t *testing.T) {
	valid := uuid.New().String()

	for _, input := range []string{"", "garbage", uuid.Nil.String()} {
		_, errUser := ParseUserID(input)
		_, errProfile := ParseProfileID(input)
		_, errSubmission := ParseSubmissionID(input)
		assert.Error(t, errUser, "input %q", input)
		assert.Error(t, errProfile, "input %q", input)
		assert.Error(t, errSubmission, "input %q", input)
	}

	_, err := ParseProfileID(valid)
	require.NoError(t, err)
	_, err = ParseSubmissionID(valid)
	require.NoError(t, err)
}

func TestIsZero(t *testing.T) {
	assert.True(t, UserID{}.IsZero())
	assert.False(t, UserID(uuid.New()).IsZero())
	assert.True(t, SubmissionID{}.IsZero())
}

func TestParseRole(t *testing.T) {
	for _, role := range []Role{RoleNurse, RolePatient, RoleAdmin} {
		parsed, err := ParseRole(role.String())
		require.NoError(t, err)
		assert.Equal(t, role, parsed)
	}

	_, err := ParseRole("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	_, err = ParseRole("superuser")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
