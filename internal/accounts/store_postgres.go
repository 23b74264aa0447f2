package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "carebridge/pkg/domain"
	"carebridge/pkg/requestcontext"
	"carebridge/pkg/sentinel"
	"carebridge/pkg/platform/tx"
)

// PostgresStore persists accounts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier picks the context transaction when one is present so the review
// service can mirror account status inside its submission transaction.
func (s *PostgresStore) querier(ctx context.Context) interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
} {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresStore) Find(ctx context.Context, userID id.UserID) (*Account, error) {
	row := s.querier(ctx).QueryRowContext(ctx, `
		SELECT user_id, role, status, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
	`, userID.String())

	var (
		account Account
		rawID   string
		rawRole string
		rawStat string
	)
	if err := row.Scan(&rawID, &rawRole, &rawStat, &account.CreatedAt, &account.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	parsedID, err := id.ParseUserID(rawID)
	if err != nil {
		return nil, fmt.Errorf("find account: corrupt user id: %w", err)
	}
	account.UserID = parsedID
	account.Role = id.Role(rawRole)
	account.Status = AccountStatus(rawStat)
	return &account, nil
}

func (s *PostgresStore) Create(ctx context.Context, account *Account) error {
	now := requestcontext.Now(ctx)
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO accounts (user_id, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, account.UserID.String(), account.Role.String(), string(account.Status), now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, userID id.UserID, status AccountStatus) error {
	now := requestcontext.Now(ctx)
	res, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE accounts
		SET status = $2, updated_at = $3
		WHERE user_id = $1
	`, userID.String(), string(status), now)
	if err != nil {
		return fmt.Errorf("set account status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set account status: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
