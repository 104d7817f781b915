// Package mysql implements public key registry persistence for MySQL databases.
package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/offcash/internal/database"
	apperrors "github.com/allisson/offcash/internal/errors"
	keyregistryDomain "github.com/allisson/offcash/internal/keyregistry/domain"
)

// MySQLPublicKeyRepository implements public key persistence for MySQL databases.
type MySQLPublicKeyRepository struct {
	db *sql.DB
}

// Create inserts a key, returning ErrKeyAlreadyRegistered when (key_type, identifier) is taken.
func (m *MySQLPublicKeyRepository) Create(ctx context.Context, key *keyregistryDomain.RegisteredKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO public_keys (id, key_type, identifier, public_key, expires_at, created_at) 
			  VALUES (?, ?, ?, ?, ?, ?)`

	id, err := key.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal public key id")
	}

	_, err = querier.ExecContext(ctx, query, id, key.KeyType, key.Identifier, key.PublicKey, key.ExpiresAt, key.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return keyregistryDomain.ErrKeyAlreadyRegistered
		}
		return apperrors.Wrap(err, "failed to create public key")
	}
	return nil
}

// Upsert replaces the key stored under (key_type, identifier).
func (m *MySQLPublicKeyRepository) Upsert(ctx context.Context, key *keyregistryDomain.RegisteredKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO public_keys (id, key_type, identifier, public_key, expires_at, created_at) 
			  VALUES (?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE public_key = VALUES(public_key), expires_at = VALUES(expires_at)`

	id, err := key.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal public key id")
	}

	_, err = querier.ExecContext(ctx, query, id, key.KeyType, key.Identifier, key.PublicKey, key.ExpiresAt, key.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert public key")
	}
	return nil
}

// Get retrieves a key by type and identifier.
func (m *MySQLPublicKeyRepository) Get(
	ctx context.Context,
	keyType keyregistryDomain.KeyType,
	identifier string,
) (*keyregistryDomain.RegisteredKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, key_type, identifier, public_key, expires_at, created_at 
			  FROM public_keys WHERE key_type = ? AND identifier = ?`

	var key keyregistryDomain.RegisteredKey
	var id []byte
	err := querier.QueryRowContext(ctx, query, keyType, identifier).Scan(
		&id,
		&key.KeyType,
		&key.Identifier,
		&key.PublicKey,
		&key.ExpiresAt,
		&key.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, keyregistryDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get public key")
	}

	if err := key.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal public key id")
	}
	return &key, nil
}

// NewMySQLPublicKeyRepository creates a new MySQL public key repository.
func NewMySQLPublicKeyRepository(db *sql.DB) *MySQLPublicKeyRepository {
	return &MySQLPublicKeyRepository{db: db}
}
