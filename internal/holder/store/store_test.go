package store

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	holderDomain "github.com/allisson/offcash/internal/holder/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
	tokenTesting "github.com/allisson/offcash/internal/token/testing"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func mintHolding(f *tokenTesting.Fixture, owner *cryptoDomain.PrivateKey, amount string, validity time.Duration) holderDomain.Holding {
	return holderDomain.Holding{Token: f.Mint(owner, amount, validity)}
}

func amounts(holdings []holderDomain.Holding) []string {
	out := make([]string, len(holdings))
	for i := range holdings {
		out[i] = tokenDomain.FormatAmount(holdings[i].Token.Amount)
	}
	return out
}

func TestStore_AvailableBalance(t *testing.T) {
	f := tokenTesting.NewFixture()
	owner := tokenTesting.NewKey()
	s := newStore(t)

	require.NoError(t, s.Add(
		mintHolding(f, owner, "10.00", time.Hour),
		mintHolding(f, owner, "5.50", time.Hour),
		mintHolding(f, owner, "100.00", time.Minute),
	))

	balance, err := s.AvailableBalance(f.Now)
	require.NoError(t, err)
	assert.Equal(t, "115.50", tokenDomain.FormatAmount(balance))

	balance, err = s.AvailableBalance(f.Now.Add(30 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "15.50", tokenDomain.FormatAmount(balance), "expired tokens are excluded")
}

func TestStore_Reserve(t *testing.T) {
	f := tokenTesting.NewFixture()
	owner := tokenTesting.NewKey()

	t.Run("PrefersExactMatch", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(
			mintHolding(f, owner, "50.00", time.Hour),
			mintHolding(f, owner, "30.00", time.Hour),
			mintHolding(f, owner, "20.00", time.Hour),
		))

		r, err := s.Reserve(tokenTesting.Amount("30"), f.Now)

		require.NoError(t, err)
		assert.Equal(t, []string{"30.00"}, amounts(r.Holdings))
	})

	t.Run("ExactMatchTieBrokenByEarliestExpiry", func(t *testing.T) {
		s := newStore(t)
		late := mintHolding(f, owner, "30.00", 2*time.Hour)
		early := mintHolding(f, owner, "30.00", time.Hour)
		require.NoError(t, s.Add(late, early))

		r, err := s.Reserve(tokenTesting.Amount("30"), f.Now)

		require.NoError(t, err)
		require.Len(t, r.Holdings, 1)
		assert.Equal(t, early.Token.ID, r.Holdings[0].Token.ID)
	})

	t.Run("SmallestCoveringToken", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(
			mintHolding(f, owner, "100.00", time.Hour),
			mintHolding(f, owner, "40.00", time.Hour),
			mintHolding(f, owner, "5.00", time.Hour),
		))

		r, err := s.Reserve(tokenTesting.Amount("30"), f.Now)

		require.NoError(t, err)
		assert.Equal(t, []string{"40.00"}, amounts(r.Holdings))
	})

	t.Run("LargestFirstWhenNoSingleTokenCovers", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(
			mintHolding(f, owner, "20.00", time.Hour),
			mintHolding(f, owner, "10.00", time.Hour),
			mintHolding(f, owner, "5.00", time.Hour),
			mintHolding(f, owner, "1.00", time.Hour),
		))

		r, err := s.Reserve(tokenTesting.Amount("26"), f.Now)

		require.NoError(t, err)
		assert.Equal(t, []string{"20.00", "10.00"}, amounts(r.Holdings))
		assert.True(t, r.Total.Equal(tokenTesting.Amount("30")))
	})

	t.Run("ReservedTokensAreNotPickedTwice", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(mintHolding(f, owner, "10.00", time.Hour)))

		first, err := s.Reserve(tokenTesting.Amount("10"), f.Now)
		require.NoError(t, err)

		_, err = s.Reserve(tokenTesting.Amount("10"), f.Now)
		assert.ErrorIs(t, err, holderDomain.ErrInsufficientBalance)

		require.NoError(t, s.Release(first.ID, first.TokenIDs()))
		_, err = s.Reserve(tokenTesting.Amount("10"), f.Now)
		assert.NoError(t, err)
	})

	t.Run("Error_InsufficientBalance", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(mintHolding(f, owner, "10.00", time.Hour)))

		_, err := s.Reserve(tokenTesting.Amount("10.01"), f.Now)

		assert.ErrorIs(t, err, holderDomain.ErrInsufficientBalance)
	})

	t.Run("Error_InvalidAmount", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Reserve(decimal.Zero, f.Now)

		assert.ErrorIs(t, err, tokenDomain.ErrInvalidAmount)
	})
}

func TestStore_Reserve_Concurrent(t *testing.T) {
	f := tokenTesting.NewFixture()
	owner := tokenTesting.NewKey()
	s := newStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Add(mintHolding(f, owner, "10.00", time.Hour)))
	}

	const workers = 12
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		reservations []*holderDomain.Reservation
		failures     int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			r, err := s.Reserve(tokenTesting.Amount("10.00"), f.Now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, holderDomain.ErrInsufficientBalance)
				failures++
				return
			}
			reservations = append(reservations, r)
		}()
	}
	wg.Wait()

	assert.Len(t, reservations, 5)
	assert.Equal(t, workers-5, failures)

	owners := make(map[uuid.UUID]uuid.UUID)
	total := decimal.Zero
	for _, r := range reservations {
		total = total.Add(r.Total)
		for _, id := range r.TokenIDs() {
			other, taken := owners[id]
			assert.False(t, taken, "token %s in reservations %s and %s", id, other, r.ID)
			owners[id] = r.ID
		}
	}
	assert.True(t, total.LessThanOrEqual(tokenTesting.Amount("50.00")), total.String())

	holdings, err := s.List()
	require.NoError(t, err)
	for _, h := range holdings {
		require.NotNil(t, h.ReservedBy)
		assert.Equal(t, owners[h.Token.ID], *h.ReservedBy)
	}
}

func TestStore_ApplyTransferResult_Idempotent(t *testing.T) {
	f := tokenTesting.NewFixture()
	sender := tokenTesting.NewKey()
	s := newStore(t)
	source := mintHolding(f, sender, "100.00", time.Hour)
	require.NoError(t, s.Add(source))

	change := holderDomain.Holding{
		Token:   f.Derive(source.Token, sender, sender, "70.00", 1),
		Lineage: source.Child(),
	}
	result := holderDomain.TransferResult{
		Spent:       []uuid.UUID{source.Token.ID},
		SpentStatus: tokenDomain.StatusTransferred,
		Added:       []holderDomain.Holding{change},
	}

	require.NoError(t, s.ApplyTransferResult(result))
	require.NoError(t, s.ApplyTransferResult(result))

	holdings, err := s.List()
	require.NoError(t, err)
	assert.Len(t, holdings, 2)

	balance, err := s.AvailableBalance(f.Now)
	require.NoError(t, err)
	assert.Equal(t, "70.00", tokenDomain.FormatAmount(balance))

	got, err := s.Get(source.Token.ID)
	require.NoError(t, err)
	assert.Equal(t, tokenDomain.StatusTransferred, got.Token.Status)
}

func TestStore_ApplyTransferResult_IncomingOutputAlreadyHeld(t *testing.T) {
	f := tokenTesting.NewFixture()
	sender := tokenTesting.NewKey()
	recipient := tokenTesting.NewKey()
	s := newStore(t)
	held := mintHolding(f, recipient, "50.00", time.Hour)
	require.NoError(t, s.Add(held))

	source := f.Mint(sender, "20.00", time.Hour)
	output := f.Derive(source, sender, recipient, "20.00", 1)
	output.ID = held.Token.ID
	record := tokenDomain.TransferRecord{
		TokenIDs:           []uuid.UUID{source.ID},
		Outputs:            []tokenDomain.Token{output},
		Lineages:           []tokenDomain.Lineage{{source}},
		SenderPublicKey:    sender.PublicKey(),
		RecipientPublicKey: recipient.PublicKey(),
		SequenceNumber:     1,
	}
	require.NoError(t, record.Sign(f.Codec, sender))

	err := s.ApplyTransferResult(holderDomain.TransferResult{
		Added:    []holderDomain.Holding{{Token: output, Lineage: tokenDomain.Lineage{source}}},
		Incoming: &record,
	})
	assert.ErrorIs(t, err, holderDomain.ErrTokenAlreadyHeld)

	_, err = s.Incoming(record.ReplayKey())
	assert.ErrorIs(t, err, holderDomain.ErrTransferNotFound)
	got, err := s.Get(held.Token.ID)
	require.NoError(t, err)
	assert.Equal(t, held.Token.Signature, got.Token.Signature)
	balance, err := s.AvailableBalance(f.Now)
	require.NoError(t, err)
	assert.Equal(t, "50.00", tokenDomain.FormatAmount(balance))
}

func TestStore_ApplyTransferResult_ReplayGuard(t *testing.T) {
	f := tokenTesting.NewFixture()
	sender := tokenTesting.NewKey()
	recipient := tokenTesting.NewKey()
	s := newStore(t)
	source := f.Mint(sender, "10.00", time.Hour)

	record := tokenDomain.TransferRecord{
		TokenIDs:           []uuid.UUID{source.ID},
		Outputs:            []tokenDomain.Token{f.Derive(source, sender, recipient, "10.00", 7)},
		Lineages:           []tokenDomain.Lineage{{source}},
		SenderPublicKey:    sender.PublicKey(),
		RecipientPublicKey: recipient.PublicKey(),
		SequenceNumber:     7,
	}
	require.NoError(t, record.Sign(f.Codec, sender))
	require.NoError(t, s.ApplyTransferResult(holderDomain.TransferResult{Incoming: &record}))

	stored, err := s.Incoming(record.ReplayKey())
	require.NoError(t, err)
	assert.Equal(t, record.Digest(), stored.Digest())

	replay := record
	replay.Outputs = []tokenDomain.Token{f.Derive(source, sender, recipient, "9.00", 7)}
	require.NoError(t, replay.Sign(f.Codec, sender))

	err = s.ApplyTransferResult(holderDomain.TransferResult{Incoming: &replay})
	assert.ErrorIs(t, err, holderDomain.ErrReplayDetected)
}

func TestStore_ApplyRedemptionResult(t *testing.T) {
	f := tokenTesting.NewFixture()
	owner := tokenTesting.NewKey()

	t.Run("RedeemedIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		h := mintHolding(f, owner, "30.00", time.Hour)
		require.NoError(t, s.Add(h))
		result := tokenDomain.RedemptionResult{TokenID: h.Token.ID, Outcome: tokenDomain.OutcomeRedeemed}

		require.NoError(t, s.ApplyRedemptionResult(result))
		require.NoError(t, s.ApplyRedemptionResult(result))

		got, err := s.Get(h.Token.ID)
		require.NoError(t, err)
		assert.Equal(t, tokenDomain.StatusRedeemed, got.Token.Status)
	})

	t.Run("InvalidLeavesTokenUntouched", func(t *testing.T) {
		s := newStore(t)
		h := mintHolding(f, owner, "30.00", time.Hour)
		require.NoError(t, s.Add(h))

		require.NoError(t, s.ApplyRedemptionResult(tokenDomain.RedemptionResult{
			TokenID: h.Token.ID,
			Outcome: tokenDomain.OutcomeInvalid,
		}))

		got, err := s.Get(h.Token.ID)
		require.NoError(t, err)
		assert.Equal(t, tokenDomain.StatusActive, got.Token.Status)
	})

	t.Run("ConflictingVerdictRejected", func(t *testing.T) {
		s := newStore(t)
		h := mintHolding(f, owner, "30.00", time.Hour)
		require.NoError(t, s.Add(h))
		require.NoError(t, s.ApplyRedemptionResult(tokenDomain.RedemptionResult{
			TokenID: h.Token.ID,
			Outcome: tokenDomain.OutcomeRedeemed,
		}))

		err := s.ApplyRedemptionResult(tokenDomain.RedemptionResult{
			TokenID: h.Token.ID,
			Outcome: tokenDomain.OutcomeDoubleSpendRejected,
		})

		assert.ErrorIs(t, err, tokenDomain.ErrInvalidStatusTransition)
	})

	t.Run("Error_UnknownToken", func(t *testing.T) {
		s := newStore(t)

		err := s.ApplyRedemptionResult(tokenDomain.RedemptionResult{
			TokenID: uuid.Must(uuid.NewV7()),
			Outcome: tokenDomain.OutcomeRedeemed,
		})

		assert.ErrorIs(t, err, holderDomain.ErrHoldingNotFound)
	})
}

func TestStore_ExpireStale(t *testing.T) {
	f := tokenTesting.NewFixture()
	owner := tokenTesting.NewKey()
	s := newStore(t)
	short := mintHolding(f, owner, "1.00", time.Minute)
	long := mintHolding(f, owner, "2.00", time.Hour)
	require.NoError(t, s.Add(short, long))

	count, err := s.ExpireStale(f.Now.Add(10 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = s.ExpireStale(f.Now.Add(10 * time.Minute))
	require.NoError(t, err)
	assert.Zero(t, count)

	got, err := s.Get(short.Token.ID)
	require.NoError(t, err)
	assert.Equal(t, tokenDomain.StatusExpired, got.Token.Status)
}

func TestStore_Claims(t *testing.T) {
	f := tokenTesting.NewFixture()
	owner := tokenTesting.NewKey()
	accountID := uuid.Must(uuid.NewV7())
	s := newStore(t)
	require.NoError(t, s.Add(mintHolding(f, owner, "1.00", time.Hour), mintHolding(f, owner, "2.00", time.Hour)))
	reservation, err := s.Reserve(tokenTesting.Amount("2"), f.Now)
	require.NoError(t, err)

	claims, err := s.Claims(f.Codec, owner, accountID, f.Now)

	require.NoError(t, err)
	require.Len(t, claims, 1, "reserved tokens are not claimed")
	assert.NotEqual(t, reservation.Holdings[0].Token.ID, claims[0].Token.ID)
	assert.NoError(t, claims[0].Verify(f.Codec, f.IssuerKey.PublicKey(), accountID))
}

func TestStore_NextSequence_Monotonic(t *testing.T) {
	s := newStore(t)

	first, err := s.NextSequence()
	require.NoError(t, err)
	second, err := s.NextSequence()
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	f := tokenTesting.NewFixture()
	owner := tokenTesting.NewKey()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	h := mintHolding(f, owner, "12.34", time.Hour)
	require.NoError(t, s.Add(h))
	_, err = s.NextSequence()
	require.NoError(t, err)
	require.NoError(t, s.SetIssuerKey(holderDomain.IssuerKey{Identifier: "issuer", PublicKey: f.IssuerKey.PublicKey()}))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer func() {
		_ = reopened.Close()
	}()

	got, err := reopened.Get(h.Token.ID)
	require.NoError(t, err)
	assert.True(t, got.Token.Amount.Equal(h.Token.Amount))

	seq, err := reopened.NextSequence()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)

	key, err := reopened.IssuerKey()
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(f.IssuerKey.PublicKey()))
}

func TestStore_Sessions(t *testing.T) {
	s := newStore(t)
	id := uuid.Must(uuid.NewV7())
	type session struct {
		State string `json:"state"`
	}

	require.NoError(t, s.SaveSession(id, session{State: "signed"}))

	ids, err := s.PendingSessions()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, ids)

	var loaded session
	require.NoError(t, s.LoadSession(id, &loaded))
	assert.Equal(t, "signed", loaded.State)

	require.NoError(t, s.DeleteSession(id))
	assert.ErrorIs(t, s.LoadSession(id, &loaded), holderDomain.ErrSessionNotFound)
}

func TestStore_DeviceKey(t *testing.T) {
	s := newStore(t)

	_, err := s.DeviceKey()
	assert.ErrorIs(t, err, holderDomain.ErrDeviceKeyNotFound)

	key := tokenTesting.NewKey()
	require.NoError(t, s.SetDeviceKey(key))

	loaded, err := s.DeviceKey()
	require.NoError(t, err)
	assert.True(t, key.PublicKey().Equal(loaded.PublicKey()))

	assert.ErrorIs(t, s.SetDeviceKey(tokenTesting.NewKey()), holderDomain.ErrDeviceKeyExists)
}
