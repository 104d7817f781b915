// Package store keeps the holder's tokens on the device in a goleveldb table.
//
// Every record is JSON keyed by a prefix and id. Token status is an explicit column of the
// holding record; nothing is derived from scattered flags. All state transitions take the
// per-holder mutex and are written as a single synced batch, so a crash leaves either the old or
// the new state.
package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	apperrors "github.com/allisson/offcash/internal/errors"
	holderDomain "github.com/allisson/offcash/internal/holder/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

const (
	holdingPrefix      = "tok/"
	incomingPrefix     = "xfer/in/"
	sessionPrefix      = "xfer/out/"
	compensationPrefix = "xfer/comp/"
	sequenceKey        = "meta/sequence"
	issuerKeyKey       = "meta/issuer_key"
	deviceKeyKey       = "meta/device_key"
)

var syncWrite = &opt.WriteOptions{Sync: true}

// Store is the durable holder-local token table.
type Store struct {
	mu sync.Mutex
	db *leveldb.DB
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open holder store")
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store backed by memory. Used by tests and dry runs.
func OpenInMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open in-memory holder store")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func holdingKey(id uuid.UUID) []byte {
	return []byte(holdingPrefix + id.String())
}

func (s *Store) getJSON(key []byte, dst any) (bool, error) {
	raw, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, dst)
}

func putJSON(batch *leveldb.Batch, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	batch.Put(key, raw)
	return nil
}

func (s *Store) getHolding(id uuid.UUID) (*holderDomain.Holding, error) {
	var h holderDomain.Holding
	found, err := s.getJSON(holdingKey(id), &h)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to read holding")
	}
	if !found {
		return nil, holderDomain.ErrHoldingNotFound
	}
	return &h, nil
}

func (s *Store) listHoldings() ([]holderDomain.Holding, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(holdingPrefix)), nil)
	defer iter.Release()

	var holdings []holderDomain.Holding
	for iter.Next() {
		var h holderDomain.Holding
		if err := json.Unmarshal(iter.Value(), &h); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode holding")
		}
		holdings = append(holdings, h)
	}
	if err := iter.Error(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate holdings")
	}
	return holdings, nil
}

// held reports whether a holding with tok's id exists. A different token under that id is
// rejected with ErrTokenAlreadyHeld.
func (s *Store) held(tok *tokenDomain.Token) (bool, error) {
	h, err := s.getHolding(tok.ID)
	switch {
	case apperrors.Is(err, holderDomain.ErrHoldingNotFound):
		return false, nil
	case err != nil:
		return false, err
	case !bytes.Equal(h.Token.Signature, tok.Signature):
		return true, holderDomain.ErrTokenAlreadyHeld
	}
	return true, nil
}

// Add stores freshly issued or otherwise externally obtained tokens as active. Tokens already
// present are left untouched.
func (s *Store) Add(holdings ...holderDomain.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	batch := new(leveldb.Batch)
	for _, h := range holdings {
		exists, err := s.held(&h.Token)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		h.Token.Status = tokenDomain.StatusActive
		h.ReservedBy = nil
		h.UpdatedAt = now
		if err := putJSON(batch, holdingKey(h.Token.ID), h); err != nil {
			return err
		}
	}
	return s.db.Write(batch, syncWrite)
}

// Get returns a single holding.
func (s *Store) Get(id uuid.UUID) (*holderDomain.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getHolding(id)
}

// List returns every holding, in key order.
func (s *Store) List() ([]holderDomain.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listHoldings()
}

// AvailableBalance sums the active tokens that are unexpired at now. Reserved tokens count,
// since they are still owned until a transfer commits.
func (s *Store) AvailableBalance(now time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	holdings, err := s.listHoldings()
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for i := range holdings {
		if holdings[i].Token.IsSpendable(now) {
			total = total.Add(holdings[i].Token.Amount)
		}
	}
	return total, nil
}

// Reserve pins a minimal set of spendable tokens covering amount. See selectTokens for the
// selection order.
func (s *Store) Reserve(amount decimal.Decimal, now time.Time) (*holderDomain.Reservation, error) {
	if err := tokenDomain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	holdings, err := s.listHoldings()
	if err != nil {
		return nil, err
	}
	candidates := holdings[:0]
	for _, h := range holdings {
		if h.IsAvailable(now) {
			candidates = append(candidates, h)
		}
	}

	picked := selectTokens(candidates, amount)
	if picked == nil {
		return nil, holderDomain.ErrInsufficientBalance
	}

	reservation := &holderDomain.Reservation{ID: uuid.Must(uuid.NewV7()), Total: decimal.Zero}
	batch := new(leveldb.Batch)
	for _, h := range picked {
		id := reservation.ID
		h.ReservedBy = &id
		h.UpdatedAt = now.UTC()
		if err := putJSON(batch, holdingKey(h.Token.ID), h); err != nil {
			return nil, err
		}
		reservation.Holdings = append(reservation.Holdings, h)
		reservation.Total = reservation.Total.Add(h.Token.Amount)
	}
	if err := s.db.Write(batch, syncWrite); err != nil {
		return nil, apperrors.Wrap(err, "failed to persist reservation")
	}
	return reservation, nil
}

// selectTokens prefers a single exact match (earliest expiry first). Otherwise it walks the
// tokens largest first and, as soon as one token can cover what is left, takes the smallest
// such token instead. Equal amounts are ordered by earliest expiry. Returns nil when the tokens
// cannot cover amount.
func selectTokens(candidates []holderDomain.Holding, amount decimal.Decimal) []holderDomain.Holding {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Token.ExpiresAt.Before(candidates[j].Token.ExpiresAt)
	})
	for _, c := range candidates {
		if c.Token.Amount.Equal(amount) {
			return []holderDomain.Holding{c}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Token.Amount.GreaterThan(candidates[j].Token.Amount)
	})

	var picked []holderDomain.Holding
	sum := decimal.Zero
	for i := range candidates {
		remaining := amount.Sub(sum)
		if best := smallestCovering(candidates[i:], remaining); best >= 0 {
			return append(picked, candidates[i+best])
		}
		picked = append(picked, candidates[i])
		sum = sum.Add(candidates[i].Token.Amount)
	}
	return nil
}

// smallestCovering returns the index of the smallest token of at least target in a slice
// sorted by amount descending, or -1.
func smallestCovering(sorted []holderDomain.Holding, target decimal.Decimal) int {
	best := -1
	for i := range sorted {
		if sorted[i].Token.Amount.LessThan(target) {
			break
		}
		if best < 0 || sorted[i].Token.Amount.LessThan(sorted[best].Token.Amount) {
			best = i
		}
	}
	return best
}

// Release unpins the reserved tokens that are still pinned by reservationID.
func (s *Store) Release(reservationID uuid.UUID, tokenIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	for _, id := range tokenIDs {
		h, err := s.getHolding(id)
		if err != nil {
			return err
		}
		if h.ReservedBy == nil || *h.ReservedBy != reservationID {
			continue
		}
		h.ReservedBy = nil
		h.UpdatedAt = time.Now().UTC()
		if err := putJSON(batch, holdingKey(id), h); err != nil {
			return err
		}
	}
	return s.db.Write(batch, syncWrite)
}

// NextSequence allocates the next transfer sequence number of this device. Numbers are never
// handed out twice, even across restarts.
func (s *Store) NextSequence() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current uint64
	raw, err := s.db.Get([]byte(sequenceKey), nil)
	switch {
	case err == nil:
		current = binary.BigEndian.Uint64(raw)
	case !errors.Is(err, leveldb.ErrNotFound):
		return 0, apperrors.Wrap(err, "failed to read sequence")
	}

	next := current + 1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := s.db.Put([]byte(sequenceKey), buf, syncWrite); err != nil {
		return 0, apperrors.Wrap(err, "failed to persist sequence")
	}
	return next, nil
}

// ApplyTransferResult applies the local effect of a transfer or division in one batch.
// Applying the same result again is a no-op.
func (s *Store) ApplyTransferResult(result holderDomain.TransferResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	if err := s.transferBatch(batch, result); err != nil {
		return err
	}
	return s.db.Write(batch, syncWrite)
}

// transferBatch stages result into batch. An incoming record already seen leaves the batch
// empty; a different record under the same replay key is rejected. Outputs of a new incoming
// record must not already be held.
func (s *Store) transferBatch(batch *leveldb.Batch, result holderDomain.TransferResult) error {
	now := time.Now().UTC()

	if result.Incoming != nil {
		key := []byte(incomingPrefix + result.Incoming.ReplayKey())
		var seen tokenDomain.TransferRecord
		found, err := s.getJSON(key, &seen)
		if err != nil {
			return apperrors.Wrap(err, "failed to read incoming transfer")
		}
		if found {
			if !bytes.Equal(seen.Digest(), result.Incoming.Digest()) {
				return holderDomain.ErrReplayDetected
			}
			return nil
		}
		if err := putJSON(batch, key, result.Incoming); err != nil {
			return err
		}
	}

	for _, id := range result.Spent {
		h, err := s.getHolding(id)
		if err != nil {
			return err
		}
		if h.Token.Status == result.SpentStatus {
			continue
		}
		if !h.Token.Status.CanTransitionTo(result.SpentStatus) {
			return apperrors.Wrap(tokenDomain.ErrInvalidStatusTransition, string(h.Token.Status))
		}
		h.Token.Status = result.SpentStatus
		h.ReservedBy = nil
		h.UpdatedAt = now
		if err := putJSON(batch, holdingKey(id), h); err != nil {
			return err
		}
	}

	for _, h := range result.Added {
		exists, err := s.held(&h.Token)
		if err != nil {
			return err
		}
		if exists && result.Incoming != nil {
			return holderDomain.ErrTokenAlreadyHeld
		}
		if exists {
			continue
		}
		h.Token.Status = tokenDomain.StatusActive
		h.ReservedBy = nil
		h.UpdatedAt = now
		if err := putJSON(batch, holdingKey(h.Token.ID), h); err != nil {
			return err
		}
	}

	if result.SessionID != uuid.Nil {
		batch.Delete([]byte(sessionPrefix + result.SessionID.String()))
	}
	return nil
}

// ApplyDivision records a standalone split: sources become divided and outputs active.
func (s *Store) ApplyDivision(division *holderDomain.Division) error {
	added := append([]holderDomain.Holding{}, division.Payment...)
	if division.Change != nil {
		added = append(added, *division.Change)
	}
	return s.ApplyTransferResult(holderDomain.TransferResult{
		Spent:       division.Sources,
		SpentStatus: tokenDomain.StatusDivided,
		Added:       added,
	})
}

// ApplyRedemptionResult applies the authority's verdict to the local copy. Invalid verdicts
// leave the token untouched and re-applying a verdict is a no-op. A local expiry does not block
// the authority's verdict, since the device clock is only advisory.
func (s *Store) ApplyRedemptionResult(result tokenDomain.RedemptionResult) error {
	next, ok := result.TokenStatus()
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.getHolding(result.TokenID)
	if err != nil {
		return err
	}
	current := h.Token.Status
	switch {
	case current == next:
		return nil
	case current.CanTransitionTo(next), current == tokenDomain.StatusExpired:
	default:
		return apperrors.Wrap(tokenDomain.ErrInvalidStatusTransition, string(current)+" to "+string(next))
	}

	h.Token.Status = next
	h.ReservedBy = nil
	h.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(h)
	if err != nil {
		return err
	}
	return s.db.Put(holdingKey(h.Token.ID), raw, syncWrite)
}

// Claims builds a signed redemption claim into accountID for every unreserved spendable token.
func (s *Store) Claims(
	signer tokenDomain.Signer,
	owner *cryptoDomain.PrivateKey,
	accountID uuid.UUID,
	now time.Time,
) ([]tokenDomain.RedemptionClaim, error) {
	s.mu.Lock()
	holdings, err := s.listHoldings()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	claims := make([]tokenDomain.RedemptionClaim, 0, len(holdings))
	for _, h := range holdings {
		if !h.IsAvailable(now) || !h.Token.OwnerPublicKey.Equal(owner.PublicKey()) {
			continue
		}
		claim, err := tokenDomain.NewRedemptionClaim(signer, owner, accountID, h.Token, h.Lineage)
		if err != nil {
			return nil, err
		}
		claims = append(claims, *claim)
	}
	return claims, nil
}

// ExpireStale marks active tokens past their expiry as expired and returns how many changed.
func (s *Store) ExpireStale(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	holdings, err := s.listHoldings()
	if err != nil {
		return 0, err
	}
	batch := new(leveldb.Batch)
	for _, h := range holdings {
		if h.Token.Status != tokenDomain.StatusActive || !h.Token.IsExpired(now) {
			continue
		}
		h.Token.Status = tokenDomain.StatusExpired
		h.ReservedBy = nil
		h.UpdatedAt = now.UTC()
		if err := putJSON(batch, holdingKey(h.Token.ID), h); err != nil {
			return 0, err
		}
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	return batch.Len(), s.db.Write(batch, syncWrite)
}
