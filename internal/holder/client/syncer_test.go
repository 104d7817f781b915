package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	holderDomain "github.com/allisson/offcash/internal/holder/domain"
	"github.com/allisson/offcash/internal/holder/store"
	keyregistryDTO "github.com/allisson/offcash/internal/keyregistry/http/dto"
	reconciliationDTO "github.com/allisson/offcash/internal/reconciliation/http/dto"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
	tokenTesting "github.com/allisson/offcash/internal/token/testing"
)

// fakeAuthority redeems every claim except those whose token id is in rejected.
type fakeAuthority struct {
	issuerKey cryptoDomain.PublicKey
	keyErr    error
	rejected  map[uuid.UUID]bool
	batches   []int
	issued    []tokenDomain.Token
}

func (a *fakeAuthority) Redeem(
	_ context.Context,
	_ uuid.UUID,
	claims []tokenDomain.RedemptionClaim,
) ([]tokenDomain.RedemptionResult, error) {
	a.batches = append(a.batches, len(claims))
	results := make([]tokenDomain.RedemptionResult, len(claims))
	for i := range claims {
		outcome := tokenDomain.OutcomeRedeemed
		if a.rejected[claims[i].Token.ID] {
			outcome = tokenDomain.OutcomeDoubleSpendRejected
		}
		results[i] = tokenDomain.RedemptionResult{
			TokenID: claims[i].Token.ID,
			Outcome: outcome,
			Amount:  claims[i].Token.Amount,
		}
	}
	return results, nil
}

func (a *fakeAuthority) PublicKey(
	_ context.Context,
	keyType string,
	identifier string,
) (*keyregistryDTO.PublicKeyResponse, error) {
	if a.keyErr != nil {
		return nil, a.keyErr
	}
	return &keyregistryDTO.PublicKeyResponse{Type: keyType, Identifier: identifier, PublicKey: a.issuerKey.String()}, nil
}

func (a *fakeAuthority) Issue(
	_ context.Context,
	_ uuid.UUID,
	_ cryptoDomain.PublicKey,
	_ decimal.Decimal,
	_ time.Duration,
) ([]tokenDomain.Token, error) {
	return a.issued, nil
}

func newHolderStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestSyncer_Sync(t *testing.T) {
	ctx := context.Background()
	f := tokenTesting.NewFixture()
	owner := tokenTesting.NewKey()
	accountID := uuid.Must(uuid.NewV7())

	t.Run("Success_AppliesVerdicts", func(t *testing.T) {
		s := newHolderStore(t)
		good := f.Mint(owner, "10.00", time.Hour)
		spent := f.Mint(owner, "1.00", time.Hour)
		stale := f.Mint(owner, "3.00", time.Minute)
		require.NoError(t, s.Add(
			holderDomain.Holding{Token: good},
			holderDomain.Holding{Token: spent},
			holderDomain.Holding{Token: stale},
		))
		authority := &fakeAuthority{
			issuerKey: f.IssuerKey.PublicKey(),
			rejected:  map[uuid.UUID]bool{spent.ID: true},
		}
		syncer := NewSyncer(s, authority, f.Codec, owner, accountID, "main", nil)

		report, err := syncer.Sync(ctx, f.Now.Add(5*time.Minute))

		require.NoError(t, err)
		assert.Equal(t, &SyncReport{Expired: 1, Submitted: 2, Redeemed: 1, Rejected: 1}, report)

		for id, want := range map[uuid.UUID]tokenDomain.Status{
			good.ID:  tokenDomain.StatusRedeemed,
			spent.ID: tokenDomain.StatusDoubleSpendFlagged,
			stale.ID: tokenDomain.StatusExpired,
		} {
			h, err := s.Get(id)
			require.NoError(t, err)
			assert.Equal(t, want, h.Token.Status)
		}

		cached, err := s.IssuerKey()
		require.NoError(t, err)
		assert.True(t, cached.PublicKey.Equal(f.IssuerKey.PublicKey()))
		assert.Equal(t, "main", cached.Identifier)

		report, err = syncer.Sync(ctx, f.Now.Add(5*time.Minute))
		require.NoError(t, err)
		assert.Zero(t, report.Submitted, "settled tokens are not resubmitted")
	})

	t.Run("Success_ChunksClaims", func(t *testing.T) {
		s := newHolderStore(t)
		for i := 0; i < reconciliationDTO.MaxClaimsPerRequest+1; i++ {
			require.NoError(t, s.Add(holderDomain.Holding{Token: f.Mint(owner, "0.01", time.Hour)}))
		}
		authority := &fakeAuthority{issuerKey: f.IssuerKey.PublicKey()}

		report, err := NewSyncer(s, authority, f.Codec, owner, accountID, "main", nil).Sync(ctx, f.Now)

		require.NoError(t, err)
		assert.Equal(t, []int{reconciliationDTO.MaxClaimsPerRequest, 1}, authority.batches)
		assert.Equal(t, reconciliationDTO.MaxClaimsPerRequest+1, report.Redeemed)
	})

	t.Run("Success_KeyRefreshFailureKeepsCachedKey", func(t *testing.T) {
		s := newHolderStore(t)
		require.NoError(t, s.SetIssuerKey(holderDomain.IssuerKey{Identifier: "main", PublicKey: f.IssuerKey.PublicKey()}))
		authority := &fakeAuthority{keyErr: errors.New("offline")}

		_, err := NewSyncer(s, authority, f.Codec, owner, accountID, "main", nil).Sync(ctx, f.Now)

		require.NoError(t, err)
		cached, err := s.IssuerKey()
		require.NoError(t, err)
		assert.True(t, cached.PublicKey.Equal(f.IssuerKey.PublicKey()))
	})
}

func TestSyncer_Withdraw(t *testing.T) {
	ctx := context.Background()
	f := tokenTesting.NewFixture()
	owner := tokenTesting.NewKey()
	accountID := uuid.Must(uuid.NewV7())

	t.Run("Success", func(t *testing.T) {
		s := newHolderStore(t)
		authority := &fakeAuthority{
			issuerKey: f.IssuerKey.PublicKey(),
			issued:    []tokenDomain.Token{f.Mint(owner, "20", time.Hour), f.Mint(owner, "5", time.Hour)},
		}

		holdings, err := NewSyncer(s, authority, f.Codec, owner, accountID, "main", nil).
			Withdraw(ctx, tokenTesting.Amount("25"), time.Hour, f.Now)

		require.NoError(t, err)
		assert.Len(t, holdings, 2)
		balance, err := s.AvailableBalance(f.Now)
		require.NoError(t, err)
		assert.Equal(t, "25.00", tokenDomain.FormatAmount(balance))
	})

	t.Run("Error_ForgedIssuerSignature", func(t *testing.T) {
		s := newHolderStore(t)
		forger := tokenTesting.NewFixture()
		authority := &fakeAuthority{
			issuerKey: f.IssuerKey.PublicKey(),
			issued:    []tokenDomain.Token{f.Mint(owner, "20", time.Hour), forger.Mint(owner, "5", time.Hour)},
		}

		_, err := NewSyncer(s, authority, f.Codec, owner, accountID, "main", nil).
			Withdraw(ctx, tokenTesting.Amount("25"), time.Hour, f.Now)

		assert.ErrorIs(t, err, tokenDomain.ErrIssuerSignatureInvalid)
		held, err := s.List()
		require.NoError(t, err)
		assert.Empty(t, held)
	})

	t.Run("Error_TokenNotOwned", func(t *testing.T) {
		s := newHolderStore(t)
		authority := &fakeAuthority{
			issuerKey: f.IssuerKey.PublicKey(),
			issued:    []tokenDomain.Token{f.Mint(tokenTesting.NewKey(), "20", time.Hour)},
		}

		_, err := NewSyncer(s, authority, f.Codec, owner, accountID, "main", nil).
			Withdraw(ctx, tokenTesting.Amount("20"), time.Hour, f.Now)

		assert.ErrorIs(t, err, holderDomain.ErrTokenNotOwned)
	})

	t.Run("Error_NoIssuerKey", func(t *testing.T) {
		s := newHolderStore(t)
		authority := &fakeAuthority{keyErr: errors.New("offline")}

		_, err := NewSyncer(s, authority, f.Codec, owner, accountID, "main", nil).
			Withdraw(ctx, tokenTesting.Amount("20"), time.Hour, f.Now)

		assert.ErrorIs(t, err, holderDomain.ErrIssuerKeyNotCached)
	})
}
