// Package repository implements public key registry persistence for PostgreSQL databases.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/offcash/internal/database"
	apperrors "github.com/allisson/offcash/internal/errors"
	keyregistryDomain "github.com/allisson/offcash/internal/keyregistry/domain"
)

// PostgreSQLPublicKeyRepository implements public key persistence for PostgreSQL databases.
type PostgreSQLPublicKeyRepository struct {
	db *sql.DB
}

// Create inserts a key, returning ErrKeyAlreadyRegistered when (key_type, identifier) is taken.
func (p *PostgreSQLPublicKeyRepository) Create(ctx context.Context, key *keyregistryDomain.RegisteredKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO public_keys (id, key_type, identifier, public_key, expires_at, created_at) 
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
		key.KeyType,
		key.Identifier,
		key.PublicKey,
		key.ExpiresAt,
		key.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return keyregistryDomain.ErrKeyAlreadyRegistered
		}
		return apperrors.Wrap(err, "failed to create public key")
	}
	return nil
}

// Upsert replaces the key stored under (key_type, identifier). Used to publish the issuer key
// at startup, where a rotated key must overwrite the previous one.
func (p *PostgreSQLPublicKeyRepository) Upsert(ctx context.Context, key *keyregistryDomain.RegisteredKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO public_keys (id, key_type, identifier, public_key, expires_at, created_at) 
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (key_type, identifier) 
			  DO UPDATE SET public_key = EXCLUDED.public_key, expires_at = EXCLUDED.expires_at`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
		key.KeyType,
		key.Identifier,
		key.PublicKey,
		key.ExpiresAt,
		key.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert public key")
	}
	return nil
}

// Get retrieves a key by type and identifier.
func (p *PostgreSQLPublicKeyRepository) Get(
	ctx context.Context,
	keyType keyregistryDomain.KeyType,
	identifier string,
) (*keyregistryDomain.RegisteredKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, key_type, identifier, public_key, expires_at, created_at 
			  FROM public_keys WHERE key_type = $1 AND identifier = $2`

	var key keyregistryDomain.RegisteredKey
	err := querier.QueryRowContext(ctx, query, keyType, identifier).Scan(
		&key.ID,
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
	return &key, nil
}

// NewPostgreSQLPublicKeyRepository creates a new PostgreSQL public key repository.
func NewPostgreSQLPublicKeyRepository(db *sql.DB) *PostgreSQLPublicKeyRepository {
	return &PostgreSQLPublicKeyRepository{db: db}
}
