package mysql

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

// MySQLIssuedTokenRepository implements issuance record persistence for MySQL databases.
type MySQLIssuedTokenRepository struct {
	db *sql.DB
}

// Create inserts a new issuance record.
func (m *MySQLIssuedTokenRepository) Create(ctx context.Context, issued *ledgerDomain.IssuedToken) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO issued_tokens (id, account_id, owner_public_key, amount, signature, status, issued_at, expires_at, settled_at) 
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := issued.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal issued token id")
	}
	accountID, err := issued.AccountID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal account id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		accountID,
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
func (m *MySQLIssuedTokenRepository) Get(ctx context.Context, tokenID uuid.UUID) (*ledgerDomain.IssuedToken, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, account_id, owner_public_key, amount, signature, status, issued_at, expires_at, settled_at 
			  FROM issued_tokens WHERE id = ?`

	id, err := tokenID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal issued token id")
	}

	issued, err := scanIssuedToken(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledgerDomain.ErrIssuedTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get issued token")
	}
	return issued, nil
}

// GetForUpdate retrieves an issuance record and locks its row until the transaction ends.
func (m *MySQLIssuedTokenRepository) GetForUpdate(
	ctx context.Context,
	tokenID uuid.UUID,
) (*ledgerDomain.IssuedToken, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, account_id, owner_public_key, amount, signature, status, issued_at, expires_at, settled_at 
			  FROM issued_tokens WHERE id = ? FOR UPDATE`

	id, err := tokenID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal issued token id")
	}

	issued, err := scanIssuedToken(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledgerDomain.ErrIssuedTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to lock issued token")
	}
	return issued, nil
}

// ListExpired locks and returns up to limit active records whose validity ended at or before now.
func (m *MySQLIssuedTokenRepository) ListExpired(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*ledgerDomain.IssuedToken, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, account_id, owner_public_key, amount, signature, status, issued_at, expires_at, settled_at 
			  FROM issued_tokens 
			  WHERE status = ? AND expires_at <= ? 
			  ORDER BY expires_at ASC 
			  LIMIT ? 
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
func (m *MySQLIssuedTokenRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COUNT(*) FROM issued_tokens WHERE status = ? AND expires_at <= ?`

	var count int64
	if err := querier.QueryRowContext(ctx, query, tokenDomain.StatusActive, now.UTC()).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count expired issued tokens")
	}
	return count, nil
}

// UpdateStatus moves a record from one status to another and reports whether it did.
func (m *MySQLIssuedTokenRepository) UpdateStatus(
	ctx context.Context,
	tokenID uuid.UUID,
	from, to tokenDomain.Status,
	settledAt time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE issued_tokens SET status = ?, settled_at = ? WHERE id = ? AND status = ?`

	id, err := tokenID.MarshalBinary()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal issued token id")
	}

	result, err := querier.ExecContext(ctx, query, to, settledAt.UTC(), id, from)
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
	var id, accountID []byte
	var status string
	err := row.Scan(
		&id,
		&accountID,
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
	if err := issued.ID.UnmarshalBinary(id); err != nil {
		return nil, err
	}
	if err := issued.AccountID.UnmarshalBinary(accountID); err != nil {
		return nil, err
	}
	issued.Status = tokenDomain.Status(status)
	issued.IssuedAt = issued.IssuedAt.UTC()
	issued.ExpiresAt = issued.ExpiresAt.UTC()
	return &issued, nil
}

// NewMySQLIssuedTokenRepository creates a new MySQL issued token repository.
func NewMySQLIssuedTokenRepository(db *sql.DB) *MySQLIssuedTokenRepository {
	return &MySQLIssuedTokenRepository{db: db}
}
