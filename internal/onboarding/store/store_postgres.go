// Package store provides the PostgreSQL implementation of the onboarding
// profile and submission stores.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"carebridge/internal/onboarding"
	id "carebridge/pkg/domain"
	"carebridge/pkg/platform/tx"
	"carebridge/pkg/sentinel"
)

const uniqueViolation = "23505"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresProfileStore persists nurse profiles in PostgreSQL. Step ordering
// preconditions are encoded in the UPDATE's WHERE clause so the check and the
// write are one atomic statement.
type PostgresProfileStore struct {
	db *sql.DB
}

func NewPostgresProfileStore(db *sql.DB) *PostgresProfileStore {
	return &PostgresProfileStore{db: db}
}

func (s *PostgresProfileStore) querier(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const profileColumns = `
	id, user_id, completion_status,
	step1_completed, step1_completed_at, step1_payload,
	step2_completed, step2_completed_at, step2_payload,
	step3_completed, step3_completed_at, step3_payload,
	submitted_at, created_at, updated_at
`

func (s *PostgresProfileStore) Find(ctx context.Context, userID id.UserID) (*onboarding.NurseProfile, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM nurse_profiles WHERE user_id = $1`,
		userID.String())
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return profile, nil
}

func (s *PostgresProfileStore) Create(ctx context.Context, profile *onboarding.NurseProfile) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO nurse_profiles (id, user_id, completion_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, profile.ID.String(), profile.UserID.String(), string(profile.CompletionStatus),
		profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// stepStatements maps each step to its conditional update. The WHERE clause
// carries the ordering precondition; the CASE keeps completion_status from
// regressing when an earlier step is re-saved.
var stepStatements = map[int]string{
	1: `
		UPDATE nurse_profiles SET
			step1_payload = $2,
			step1_completed = TRUE,
			step1_completed_at = COALESCE(step1_completed_at, $3),
			completion_status = CASE WHEN completion_status = 'not_started'
				THEN 'step_1_completed' ELSE completion_status END,
			updated_at = $3
		WHERE user_id = $1
		RETURNING ` + profileColumns,
	2: `
		UPDATE nurse_profiles SET
			step2_payload = $2,
			step2_completed = TRUE,
			step2_completed_at = COALESCE(step2_completed_at, $3),
			completion_status = CASE WHEN completion_status IN ('not_started', 'step_1_completed')
				THEN 'step_2_completed' ELSE completion_status END,
			updated_at = $3
		WHERE user_id = $1 AND step1_completed
		RETURNING ` + profileColumns,
	3: `
		UPDATE nurse_profiles SET
			step3_payload = $2,
			step3_completed = TRUE,
			step3_completed_at = COALESCE(step3_completed_at, $3),
			completion_status = CASE WHEN completion_status IN ('not_started', 'step_1_completed', 'step_2_completed')
				THEN 'step_3_completed' ELSE completion_status END,
			updated_at = $3
		WHERE user_id = $1 AND step1_completed AND step2_completed
		RETURNING ` + profileColumns,
}

func (s *PostgresProfileStore) SaveStep(ctx context.Context, userID id.UserID, step int, payload json.RawMessage, at time.Time) (*onboarding.NurseProfile, error) {
	stmt, ok := stepStatements[step]
	if !ok {
		return nil, sentinel.ErrInvalidState
	}

	row := s.querier(ctx).QueryRowContext(ctx, stmt, userID.String(), []byte(payload), at)
	profile, err := scanProfile(row)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("save step %d: %w", step, err)
	}

	// Zero rows: either the profile is missing or a prerequisite step is
	// incomplete. Disambiguate so the service can name the right error.
	if _, findErr := s.Find(ctx, userID); findErr != nil {
		return nil, findErr
	}
	return nil, sentinel.ErrPreconditionFailed
}

func (s *PostgresProfileStore) MarkSubmitted(ctx context.Context, userID id.UserID, at time.Time) error {
	res, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE nurse_profiles SET
			completion_status = 'submitted',
			submitted_at = $2,
			updated_at = $2
		WHERE user_id = $1 AND step1_completed AND step2_completed AND step3_completed
	`, userID.String(), at)
	if err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.Find(ctx, userID); findErr != nil {
			return findErr
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresProfileStore) SetCompletionStatus(ctx context.Context, userID id.UserID, status onboarding.CompletionStatus) error {
	res, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE nurse_profiles SET completion_status = $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID.String(), string(status))
	if err != nil {
		return fmt.Errorf("set completion status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set completion status: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*onboarding.NurseProfile, error) {
	var (
		profile               onboarding.NurseProfile
		rawID, rawUser        string
		rawStatus             string
		p1, p2, p3            []byte
		sub, t1, t2, t3       sql.NullTime
	)
	err := row.Scan(
		&rawID, &rawUser, &rawStatus,
		&profile.Step1Completed, &t1, &p1,
		&profile.Step2Completed, &t2, &p2,
		&profile.Step3Completed, &t3, &p3,
		&sub, &profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	profileID, err := id.ParseProfileID(rawID)
	if err != nil {
		return nil, fmt.Errorf("corrupt profile id: %w", err)
	}
	userID, err := id.ParseUserID(rawUser)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id: %w", err)
	}

	profile.ID = profileID
	profile.UserID = userID
	profile.CompletionStatus = onboarding.CompletionStatus(rawStatus)
	profile.Step1Payload = json.RawMessage(p1)
	profile.Step2Payload = json.RawMessage(p2)
	profile.Step3Payload = json.RawMessage(p3)
	if t1.Valid {
		profile.Step1CompletedAt = &t1.Time
	}
	if t2.Valid {
		profile.Step2CompletedAt = &t2.Time
	}
	if t3.Valid {
		profile.Step3CompletedAt = &t3.Time
	}
	if sub.Valid {
		profile.SubmittedAt = &sub.Time
	}
	return &profile, nil
}

// PostgresSubmissionStore persists submissions. The single-active-submission
// invariant is a partial unique index:
//
//	CREATE UNIQUE INDEX ux_submissions_active ON submissions (user_id)
//	WHERE status IN ('pending', 'under_review');
//
// so two concurrent submits can never both insert.
type PostgresSubmissionStore struct {
	db *sql.DB
}

func NewPostgresSubmissionStore(db *sql.DB) *PostgresSubmissionStore {
	return &PostgresSubmissionStore{db: db}
}

func (s *PostgresSubmissionStore) querier(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresSubmissionStore) Create(ctx context.Context, submission *onboarding.Submission) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO submissions (id, user_id, profile_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, submission.ID.String(), submission.UserID.String(), submission.ProfileID.String(),
		string(submission.Status), submission.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

func (s *PostgresSubmissionStore) Find(ctx context.Context, submissionID id.SubmissionID) (*onboarding.Submission, error) {
	row := s.querier(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, profile_id, status, created_at, updated_at
		FROM submissions WHERE id = $1
	`, submissionID.String())
	return scanSubmission(row)
}

func (s *PostgresSubmissionStore) FindActive(ctx context.Context, userID id.UserID) (*onboarding.Submission, error) {
	row := s.querier(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, profile_id, status, created_at, updated_at
		FROM submissions
		WHERE user_id = $1 AND status IN ('pending', 'under_review')
	`, userID.String())
	return scanSubmission(row)
}

func (s *PostgresSubmissionStore) SetStatus(ctx context.Context, submissionID id.SubmissionID, status onboarding.SubmissionStatus, at time.Time) error {
	res, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE submissions SET status = $2, updated_at = $3 WHERE id = $1
	`, submissionID.String(), string(status), at)
	if err != nil {
		return fmt.Errorf("set submission status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set submission status: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresSubmissionStore) AppendAction(ctx context.Context, submissionID id.SubmissionID, entry onboarding.ActionEntry) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO submission_actions (submission_id, admin_id, action, note, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, submissionID.String(), entry.AdminID.String(), entry.Action, entry.Note, entry.At)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("append submission action: %w", err)
	}
	return nil
}

func (s *PostgresSubmissionStore) ListActions(ctx context.Context, submissionID id.SubmissionID) ([]onboarding.ActionEntry, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT admin_id, action, note, created_at
		FROM submission_actions
		WHERE submission_id = $1
		ORDER BY created_at, id
	`, submissionID.String())
	if err != nil {
		return nil, fmt.Errorf("list submission actions: %w", err)
	}
	defer rows.Close()

	var entries []onboarding.ActionEntry
	for rows.Next() {
		var (
			entry    onboarding.ActionEntry
			rawAdmin string
		)
		if err := rows.Scan(&rawAdmin, &entry.Action, &entry.Note, &entry.At); err != nil {
			return nil, fmt.Errorf("list submission actions: %w", err)
		}
		adminID, err := id.ParseUserID(rawAdmin)
		if err != nil {
			return nil, fmt.Errorf("corrupt admin id: %w", err)
		}
		entry.AdminID = adminID
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanSubmission(row rowScanner) (*onboarding.Submission, error) {
	var (
		submission              onboarding.Submission
		rawID, rawUser, rawProf string
		rawStatus               string
	)
	err := row.Scan(&rawID, &rawUser, &rawProf, &rawStatus, &submission.CreatedAt, &submission.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}

	subID, err := id.ParseSubmissionID(rawID)
	if err != nil {
		return nil, fmt.Errorf("corrupt submission id: %w", err)
	}
	userID, err := id.ParseUserID(rawUser)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id: %w", err)
	}
	profileID, err := id.ParseProfileID(rawProf)
	if err != nil {
		return nil, fmt.Errorf("corrupt profile id: %w", err)
	}

	submission.ID = subID
	submission.UserID = userID
	submission.ProfileID = profileID
	submission.Status = onboarding.SubmissionStatus(rawStatus)
	return &submission, nil
}
