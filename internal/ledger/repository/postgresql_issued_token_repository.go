package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/offcash/internal/database"
	apperrors "github.com/allisson/offcash/internal/errors"
	ledgerDomain "github.com/allisson/offcash/internal/ledger/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// PostgreSQLIssuedTokenRepository implements issuance record persistence for PostgreSQL databases.
type PostgreSQLIssuedTokenRepository struct {
	db *sql.DB
}

// Create inserts a new issuance record.
func (p *PostgreSQLIssuedTokenRepository) Create(ctx context.Context, issued *ledgerDomain.IssuedToken) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO issued_tokens (id, account_id, owner_public_key, amount, signature, status, issued_at, expires_at, settled_at) 
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(
		ctx,
		query,
		issued.ID,
		issued.AccountID,
		issued.OwnerPublicKey,
		issued.Amount,
		issued.Signature,
		issued.Status,
		issued.IssuedAt,
		issued.ExpiresAt,
		issued.SettledAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create issued token")
	}
	return nil
}

// Get retrieves an issuance record by token id.
func (p *PostgreSQLIssuedTokenRepository) Get(ctx context.Context, tokenID uuid.UUID) (*ledgerDomain.IssuedToken, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, account_id, owner_public_key, amount, signature, status, issued_at, expires_at, settled_at 
			  FROM issued_tokens WHERE id = $1`

	issued, err := scanIssuedToken(querier.QueryRowContext(ctx, query, tokenID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledgerDomain.ErrIssuedTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get issued token")
	}
	return issued, nil
}

// GetForUpdate retrieves an issuance record and locks its row until the transaction ends.
// Redemption and the expiration sweep both lock this row first, which orders their locks.
func (p *PostgreSQLIssuedTokenRepository) GetForUpdate(
	ctx context.Context,
	tokenID uuid.UUID,
) (*ledgerDomain.IssuedToken, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, account_id, owner_public_key, amount, signature, status, issued_at, expires_at, settled_at 
			  FROM issued_tokens WHERE id = $1 FOR UPDATE`

	issued, err := scanIssuedToken(querier.QueryRowContext(ctx, query, tokenID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledgerDomain.ErrIssuedTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to lock issued token")
	}
	return issued, nil
}

// ListExpired locks and returns up to limit active records whose validity ended at or before now.
// Rows locked by a concurrent sweep are skipped.
func (p *PostgreSQLIssuedTokenRepository) ListExpired(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*ledgerDomain.IssuedToken, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, account_id, owner_public_key, amount, signature, status, issued_at, expires_at, settled_at 
			  FROM issued_tokens 
			  WHERE status = $1 AND expires_at <= $2 
			  ORDER BY expires_at ASC 
			  LIMIT $3 
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, tokenDomain.StatusActive, now.UTC(), limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list expired issued tokens")
	}
	defer func() {
		_ = rows.Close()
	}()

	var issued []*ledgerDomain.IssuedToken
	for rows.Next() {
		item, err := scanIssuedToken(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan issued token")
		}
		issued = append(issued, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate issued tokens")
	}
	return issued, nil
}

// CountExpired counts active records whose validity ended at or before now.
func (p *PostgreSQLIssuedTokenRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*) FROM issued_tokens WHERE status = $1 AND expires_at <= $2`

	var count int64
	if err := querier.QueryRowContext(ctx, query, tokenDomain.StatusActive, now.UTC()).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count expired issued tokens")
	}
	return count, nil
}

// UpdateStatus moves a record from one status to another. It reports false when the record
// was not in the expected status, which makes concurrent transitions safe to race.
func (p *PostgreSQLIssuedTokenRepository) UpdateStatus(
	ctx context.Context,
	tokenID uuid.UUID,
	from, to tokenDomain.Status,
	settledAt time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE issued_tokens SET status = $1, settled_at = $2 WHERE id = $3 AND status = $4`

	result, err := querier.ExecContext(ctx, query, to, settledAt.UTC(), tokenID, from)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to update issued token status")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to get rows affected")
	}
	return rows == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssuedToken(row rowScanner) (*ledgerDomain.IssuedToken, error) {
	var issued ledgerDomain.IssuedToken
	var status string
	err := row.Scan(
		&issued.ID,
		&issued.AccountID,
		&issued.OwnerPublicKey,
		&issued.Amount,
		&issued.Signature,
		&status,
		&issued.IssuedAt,
		&issued.ExpiresAt,
		&issued.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	issued.Status = tokenDomain.Status(status)
	issued.IssuedAt = issued.IssuedAt.UTC()
	issued.ExpiresAt = issued.ExpiresAt.UTC()
	return &issued, nil
}

// NewPostgreSQLIssuedTokenRepository creates a new PostgreSQL issued token repository.
func NewPostgreSQLIssuedTokenRepository(db *sql.DB) *PostgreSQLIssuedTokenRepository {
	return &PostgreSQLIssuedTokenRepository{db: db}
}
