package store

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	apperrors "github.com/allisson/offcash/internal/errors"
	holderDomain "github.com/allisson/offcash/internal/holder/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// SaveSession persists an outgoing transfer session so it survives restarts. The session is
// stored as opaque JSON owned by the transfer protocol.
func (s *Store) SaveSession(id uuid.UUID, session any) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Put([]byte(sessionPrefix+id.String()), raw, syncWrite)
}

// LoadSession decodes the pending session id into dst.
func (s *Store) LoadSession(id uuid.UUID, dst any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found, err := s.getJSON([]byte(sessionPrefix+id.String()), dst)
	if err != nil {
		return apperrors.Wrap(err, "failed to read session")
	}
	if !found {
		return holderDomain.ErrSessionNotFound
	}
	return nil
}

// DeleteSession removes a pending session.
func (s *Store) DeleteSession(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Delete([]byte(sessionPrefix+id.String()), syncWrite)
}

// PendingSessions lists the ids of sessions that have not completed.
func (s *Store) PendingSessions() ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter := s.db.NewIterator(util.BytesPrefix([]byte(sessionPrefix)), nil)
	defer iter.Release()

	var ids []uuid.UUID
	for iter.Next() {
		id, err := uuid.Parse(string(iter.Key()[len(sessionPrefix):]))
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to parse session key")
		}
		ids = append(ids, id)
	}
	return ids, iter.Error()
}

// Incoming returns the transfer recorded under replayKey by this device as recipient.
func (s *Store) Incoming(replayKey string) (*tokenDomain.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var record tokenDomain.TransferRecord
	found, err := s.getJSON([]byte(incomingPrefix+replayKey), &record)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to read incoming transfer")
	}
	if !found {
		return nil, holderDomain.ErrTransferNotFound
	}
	return &record, nil
}

// SaveCompensation stores a compensation record and applies result in the same batch.
func (s *Store) SaveCompensation(record holderDomain.CompensationRecord, result holderDomain.TransferResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	if err := s.transferBatch(batch, result); err != nil {
		return err
	}
	if err := putJSON(batch, []byte(compensationPrefix+record.SessionID.String()), record); err != nil {
		return err
	}
	return s.db.Write(batch, syncWrite)
}

// Compensations lists every stored compensation record.
func (s *Store) Compensations() ([]holderDomain.CompensationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter := s.db.NewIterator(util.BytesPrefix([]byte(compensationPrefix)), nil)
	defer iter.Release()

	var records []holderDomain.CompensationRecord
	for iter.Next() {
		var record holderDomain.CompensationRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode compensation")
		}
		records = append(records, record)
	}
	return records, iter.Error()
}

// SetIssuerKey caches the issuer verification key.
func (s *Store) SetIssuerKey(key holderDomain.IssuerKey) error {
	raw, err := json.Marshal(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Put([]byte(issuerKeyKey), raw, syncWrite)
}

// IssuerKey returns the cached issuer verification key.
func (s *Store) IssuerKey() (*holderDomain.IssuerKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var key holderDomain.IssuerKey
	found, err := s.getJSON([]byte(issuerKeyKey), &key)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to read issuer key")
	}
	if !found {
		return nil, holderDomain.ErrIssuerKeyNotCached
	}
	return &key, nil
}

// SetDeviceKey stores the holder's signing key. A device has exactly one key.
func (s *Store) SetDeviceKey(key *cryptoDomain.PrivateKey) error {
	raw := key.Bytes()
	defer cryptoDomain.Zero(raw)

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.db.Has([]byte(deviceKeyKey), nil)
	if err != nil {
		return apperrors.Wrap(err, "failed to read device key")
	}
	if exists {
		return holderDomain.ErrDeviceKeyExists
	}
	return s.db.Put([]byte(deviceKeyKey), raw, syncWrite)
}

// DeviceKey returns the holder's signing key.
func (s *Store) DeviceKey() (*cryptoDomain.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.db.Get([]byte(deviceKeyKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, holderDomain.ErrDeviceKeyNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to read device key")
	}
	defer cryptoDomain.Zero(raw)
	return cryptoDomain.PrivateKeyFromBytes(raw)
}
