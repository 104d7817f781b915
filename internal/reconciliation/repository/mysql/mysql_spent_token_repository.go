// Package mysql implements reconciliation ledger state persistence for MySQL databases.
// UUIDs are stored as BINARY(16).
package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/offcash/internal/database"
	apperrors "github.com/allisson/offcash/internal/errors"
	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// MySQLSpentTokenRepository implements spent token persistence for MySQL databases.
type MySQLSpentTokenRepository struct {
	db *sql.DB
}

// Create inserts the spent marker, returning ErrTokenAlreadySpent for a duplicate token id.
func (m *MySQLSpentTokenRepository) Create(ctx context.Context, spent *reconciliationDomain.SpentToken) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO spent_tokens (token_id, redemption_id, root_token_id, account_id, amount, spent_at) 
			  VALUES (?, ?, ?, ?, ?, ?)`

	ids, err := marshalUUIDs(spent.TokenID, spent.RedemptionID, spent.RootTokenID, spent.AccountID)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal spent token ids")
	}

	_, err = querier.ExecContext(ctx, query, ids[0], ids[1], ids[2], ids[3], spent.Amount, spent.SpentAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return tokenDomain.ErrTokenAlreadySpent
		}
		return apperrors.Wrap(err, "failed to create spent token")
	}
	return nil
}

// Get retrieves the spent marker of a token id.
func (m *MySQLSpentTokenRepository) Get(
	ctx context.Context,
	tokenID uuid.UUID,
) (*reconciliationDomain.SpentToken, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT token_id, redemption_id, root_token_id, account_id, amount, spent_at 
			  FROM spent_tokens WHERE token_id = ?`

	idBytes, err := tokenID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal token id")
	}

	var spent reconciliationDomain.SpentToken
	var id, redemptionID, rootID, accountID []byte
	err = querier.QueryRowContext(ctx, query, idBytes).Scan(
		&id,
		&redemptionID,
		&rootID,
		&accountID,
		&spent.Amount,
		&spent.SpentAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tokenDomain.ErrTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get spent token")
	}

	if err := unmarshalUUIDs(
		[][]byte{id, redemptionID, rootID, accountID},
		&spent.TokenID, &spent.RedemptionID, &spent.RootTokenID, &spent.AccountID,
	); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal spent token ids")
	}
	return &spent, nil
}

// NewMySQLSpentTokenRepository creates a new MySQL spent token repository.
func NewMySQLSpentTokenRepository(db *sql.DB) *MySQLSpentTokenRepository {
	return &MySQLSpentTokenRepository{db: db}
}

func marshalUUIDs(ids ...uuid.UUID) ([][]byte, error) {
	out := make([][]byte, len(ids))
	for i, id := range ids {
		b, err := id.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func unmarshalUUIDs(raw [][]byte, dst ...*uuid.UUID) error {
	for i := range dst {
		if err := dst[i].UnmarshalBinary(raw[i]); err != nil {
			return err
		}
	}
	return nil
}

// nullableUUID converts an optional id to a BINARY(16) value or NULL.
func nullableUUID(id *uuid.UUID) (any, error) {
	if id == nil {
		return nil, nil
	}
	return id.MarshalBinary()
}

// scanNullableUUID converts a nullable BINARY(16) column back to an optional id.
func scanNullableUUID(raw []byte) (*uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	var id uuid.UUID
	if err := id.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return &id, nil
}
