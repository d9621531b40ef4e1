package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const teamAccountColumns = "team_id, account_id, status, charges_enabled, payouts_enabled, details_submitted, last_checked_at, created_at"

// Postgres implements TeamAccountStore on a pgx pool. Per-team atomicity
// comes from a row lock held for the duration of each mutation.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Get(ctx context.Context, teamID string) (TeamAccount, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+teamAccountColumns+`
		FROM team_accounts
		WHERE team_id = $1
	`, teamID)
	return scanTeamAccount(row)
}

func (s *Postgres) FindByAccountID(ctx context.Context, accountID string) (TeamAccount, error) {
	if accountID == "" {
		return TeamAccount{}, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+teamAccountColumns+`
		FROM team_accounts
		WHERE account_id = $1
	`, accountID)
	return scanTeamAccount(row)
}

func (s *Postgres) AssignAccount(ctx context.Context, teamID, accountID string, observedAt time.Time) (TeamAccount, error) {
	if teamID == "" || accountID == "" {
		return TeamAccount{}, ErrInvalidInput
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TeamAccount{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	existing, err := lockTeamAccount(ctx, tx, teamID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return TeamAccount{}, err
	}
	haveRecord := err == nil

	var owner string
	err = tx.QueryRow(ctx,
		"SELECT team_id FROM team_accounts WHERE account_id = $1 AND team_id <> $2",
		accountID, teamID,
	).Scan(&owner)
	if err == nil {
		return TeamAccount{}, ErrAccountTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return TeamAccount{}, err
	}

	var created TeamAccount
	if haveRecord {
		if existing.AccountID == accountID {
			if err := tx.Commit(ctx); err != nil {
				return TeamAccount{}, err
			}
			return existing, nil
		}
		if existing.AccountID != "" {
			return TeamAccount{}, ErrAccountAssigned
		}
		row := tx.QueryRow(ctx, `
			UPDATE team_accounts
			SET account_id = $2, status = $3, last_checked_at = $4
			WHERE team_id = $1
			RETURNING `+teamAccountColumns+`
		`, teamID, accountID, StatusPending, observedAt)
		created, err = scanTeamAccount(row)
	} else {
		row := tx.QueryRow(ctx, `
			INSERT INTO team_accounts (team_id, account_id, status, last_checked_at)
			VALUES ($1, $2, $3, $4)
			RETURNING `+teamAccountColumns+`
		`, teamID, accountID, StatusPending, observedAt)
		created, err = scanTeamAccount(row)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return TeamAccount{}, ErrAccountTaken
		}
		return TeamAccount{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TeamAccount{}, err
	}
	return created, nil
}

func (s *Postgres) UpsertStatus(ctx context.Context, input UpsertStatusInput) (TeamAccount, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TeamAccount{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	current, err := lockTeamAccount(ctx, tx, input.TeamID)
	if err != nil {
		return TeamAccount{}, err
	}

	// Stale observation: acknowledge without overwriting newer state.
	if input.ObservedAt.Before(current.LastCheckedAt) {
		if err := tx.Commit(ctx); err != nil {
			return TeamAccount{}, err
		}
		return current, nil
	}

	row := tx.QueryRow(ctx, `
		UPDATE team_accounts
		SET status = $2, charges_enabled = $3, payouts_enabled = $4,
		    details_submitted = $5, last_checked_at = $6
		WHERE team_id = $1
		RETURNING `+teamAccountColumns+`
	`, input.TeamID, input.Status, input.ChargesEnabled, input.PayoutsEnabled,
		input.DetailsSubmitted, input.ObservedAt)
	updated, err := scanTeamAccount(row)
	if err != nil {
		return TeamAccount{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TeamAccount{}, err
	}
	return updated, nil
}

func (s *Postgres) ClearAccount(ctx context.Context, teamID string, observedAt time.Time) (TeamAccount, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TeamAccount{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := lockTeamAccount(ctx, tx, teamID); err != nil {
		return TeamAccount{}, err
	}

	// Deauthorization applies unconditionally: the platform has severed the
	// account, so no later capability observation can be more recent.
	row := tx.QueryRow(ctx, `
		UPDATE team_accounts
		SET account_id = '', status = $2, charges_enabled = FALSE,
		    payouts_enabled = FALSE, details_submitted = FALSE, last_checked_at = $3
		WHERE team_id = $1
		RETURNING `+teamAccountColumns+`
	`, teamID, StatusNotStarted, observedAt)
	cleared, err := scanTeamAccount(row)
	if err != nil {
		return TeamAccount{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TeamAccount{}, err
	}
	return cleared, nil
}

func lockTeamAccount(ctx context.Context, tx pgx.Tx, teamID string) (TeamAccount, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+teamAccountColumns+`
		FROM team_accounts
		WHERE team_id = $1
		FOR UPDATE
	`, teamID)
	return scanTeamAccount(row)
}

func scanTeamAccount(row pgx.Row) (TeamAccount, error) {
	var a TeamAccount
	err := row.Scan(
		&a.TeamID,
		&a.AccountID,
		&a.Status,
		&a.ChargesEnabled,
		&a.PayoutsEnabled,
		&a.DetailsSubmitted,
		&a.LastCheckedAt,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TeamAccount{}, ErrNotFound
		}
		return TeamAccount{}, err
	}
	return a, nil
}

func isUniqueViolation(err error) bool {
	pgErr, ok := err.(*pgconn.PgError)
	if !ok {
		return false
	}
	return pgErr.Code == "23505"
}
