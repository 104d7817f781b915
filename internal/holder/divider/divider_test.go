package divider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	holderDomain "github.com/allisson/offcash/internal/holder/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
	tokenTesting "github.com/allisson/offcash/internal/token/testing"
)

func sources(f *tokenTesting.Fixture, owner *cryptoDomain.PrivateKey, amounts ...string) []holderDomain.Holding {
	out := make([]holderDomain.Holding, len(amounts))
	for i, amount := range amounts {
		out[i] = holderDomain.Holding{Token: f.Mint(owner, amount, time.Hour)}
	}
	return out
}

func TestDivider_Divide(t *testing.T) {
	f := tokenTesting.NewFixture()
	spender := tokenTesting.NewKey()
	recipient := tokenTesting.NewKey()
	d := New(f.Codec)

	t.Run("Success_SplitsCrossingSourceIntoPaymentAndChange", func(t *testing.T) {
		in := Input{
			Sources:     sources(f, spender, "20.00", "10.00"),
			ExactAmount: tokenTesting.Amount("26.50"),
			Recipient:   recipient.PublicKey(),
			Spender:     spender,
			Sequence:    4,
			Now:         f.Now,
		}

		division, err := d.Divide(in)

		require.NoError(t, err)
		assert.Len(t, division.Sources, 2)
		require.Len(t, division.Payment, 2)
		assert.Equal(t, "20.00", tokenDomain.FormatAmount(division.Payment[0].Token.Amount))
		assert.Equal(t, "6.50", tokenDomain.FormatAmount(division.Payment[1].Token.Amount))
		require.NotNil(t, division.Change)
		assert.Equal(t, "3.50", tokenDomain.FormatAmount(division.Change.Token.Amount))
		assert.True(t, division.Change.Token.OwnerPublicKey.Equal(spender.PublicKey()))
		assert.Equal(t, "30.00", tokenDomain.FormatAmount(division.Total()))

		for _, out := range append(division.Payment, *division.Change) {
			assert.Equal(t, uint64(4), out.Token.SequenceNumber)
			assert.NoError(t, tokenDomain.VerifyChain(f.Codec, f.IssuerKey.PublicKey(), &out.Token, out.Lineage))
		}
		for _, out := range division.Payment {
			assert.True(t, out.Token.OwnerPublicKey.Equal(recipient.PublicKey()))
		}
	})

	t.Run("Success_ExactSumHasNoChange", func(t *testing.T) {
		division, err := d.Divide(Input{
			Sources:     sources(f, spender, "5.00", "5.00"),
			ExactAmount: tokenTesting.Amount("10"),
			Recipient:   recipient.PublicKey(),
			Spender:     spender,
			Now:         f.Now,
		})

		require.NoError(t, err)
		assert.Nil(t, division.Change)
		assert.Equal(t, "10.00", tokenDomain.FormatAmount(division.PaymentTotal()))
	})

	t.Run("Success_UnneededSourcesAreUntouched", func(t *testing.T) {
		in := sources(f, spender, "10.00", "7.00")

		division, err := d.Divide(Input{
			Sources:     in,
			ExactAmount: tokenTesting.Amount("4"),
			Recipient:   recipient.PublicKey(),
			Spender:     spender,
			Now:         f.Now,
		})

		require.NoError(t, err)
		require.Len(t, division.Sources, 1)
		assert.Equal(t, in[0].Token.ID, division.Sources[0])
		assert.Equal(t, "6.00", tokenDomain.FormatAmount(division.Change.Token.Amount))
	})

	t.Run("Success_SelfSplit", func(t *testing.T) {
		division, err := d.Divide(Input{
			Sources:     sources(f, spender, "1.00"),
			ExactAmount: tokenTesting.Amount("0.01"),
			Recipient:   spender.PublicKey(),
			Spender:     spender,
			Now:         f.Now,
		})

		require.NoError(t, err)
		assert.Equal(t, "0.01", tokenDomain.FormatAmount(division.Payment[0].Token.Amount))
		assert.Equal(t, "0.99", tokenDomain.FormatAmount(division.Change.Token.Amount))

		payment, change := division.Payment[0].Token, division.Change.Token
		assert.NotEqual(t, payment.ID, change.ID)
		assert.Equal(t, tokenDomain.DerivedTokenID(*payment.ParentID, 0, 0, spender.PublicKey()), payment.ID)
		assert.Equal(t, tokenDomain.DerivedTokenID(*change.ParentID, 0, 1, spender.PublicKey()), change.ID)
		for _, tok := range []tokenDomain.Token{payment, change} {
			assert.NoError(t, tokenDomain.VerifyChain(f.Codec, f.IssuerKey.PublicKey(), &tok, division.Payment[0].Lineage))
		}
	})

	t.Run("Error_InvalidAmount", func(t *testing.T) {
		for _, amount := range []string{"0", "-1"} {
			_, err := d.Divide(Input{
				Sources:     sources(f, spender, "1.00"),
				ExactAmount: tokenTesting.Amount(amount),
				Recipient:   recipient.PublicKey(),
				Spender:     spender,
				Now:         f.Now,
			})
			assert.ErrorIs(t, err, tokenDomain.ErrInvalidAmount, amount)
		}
	})

	t.Run("Error_Rounding", func(t *testing.T) {
		_, err := d.Divide(Input{
			Sources:     sources(f, spender, "1.00"),
			ExactAmount: tokenTesting.Amount("0.005"),
			Recipient:   recipient.PublicKey(),
			Spender:     spender,
			Now:         f.Now,
		})

		assert.ErrorIs(t, err, holderDomain.ErrDivisionRounding)
	})

	t.Run("Error_InsufficientSources", func(t *testing.T) {
		_, err := d.Divide(Input{
			Sources:     sources(f, spender, "1.00", "2.00"),
			ExactAmount: tokenTesting.Amount("3.01"),
			Recipient:   recipient.PublicKey(),
			Spender:     spender,
			Now:         f.Now,
		})

		assert.ErrorIs(t, err, holderDomain.ErrInsufficientSources)
	})

	t.Run("Error_SourceNotOwned", func(t *testing.T) {
		_, err := d.Divide(Input{
			Sources:     sources(f, recipient, "5.00"),
			ExactAmount: tokenTesting.Amount("1"),
			Recipient:   recipient.PublicKey(),
			Spender:     spender,
			Now:         f.Now,
		})

		assert.ErrorIs(t, err, holderDomain.ErrSourceNotOwned)
	})
}
