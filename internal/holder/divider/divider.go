// Package divider splits reserved tokens into an exact payment and a single change token.
package divider

import (
	"time"

	"github.com/shopspring/decimal"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	holderDomain "github.com/allisson/offcash/internal/holder/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// Output indexes within the division of one source.
const (
	paymentOutput uint32 = 0
	changeOutput  uint32 = 1
)

// Input describes one division.
type Input struct {
	Sources     []holderDomain.Holding
	ExactAmount decimal.Decimal
	// Recipient owns the payment outputs. Use the spender's own key for a local split.
	Recipient cryptoDomain.PublicKey
	Spender   *cryptoDomain.PrivateKey
	Sequence  uint64
	Now       time.Time
}

// Divider builds signed division outputs.
type Divider struct {
	signer tokenDomain.Signer
}

// New creates a Divider signing with signer.
func New(signer tokenDomain.Signer) *Divider {
	return &Divider{signer: signer}
}

// Divide consumes the sources in order. Each source fully covered by what is still owed becomes
// one payment token of the same value. The source that crosses the target is split into a
// payment token and a change token for the spender. Sources left over after the target is met
// are not touched and not reported as spent.
//
// Nothing is emitted on error.
func (d *Divider) Divide(in Input) (*holderDomain.Division, error) {
	if !in.ExactAmount.IsPositive() {
		return nil, tokenDomain.ErrInvalidAmount
	}
	if !tokenDomain.IsRepresentable(in.ExactAmount) {
		return nil, holderDomain.ErrDivisionRounding
	}
	if err := in.Recipient.Validate(); err != nil {
		return nil, err
	}

	spender := in.Spender.PublicKey()
	total := decimal.Zero
	for i := range in.Sources {
		src := &in.Sources[i].Token
		if !src.OwnerPublicKey.Equal(spender) {
			return nil, holderDomain.ErrSourceNotOwned
		}
		if !tokenDomain.IsRepresentable(src.Amount) {
			return nil, holderDomain.ErrDivisionRounding
		}
		total = total.Add(src.Amount)
	}
	if total.LessThan(in.ExactAmount) {
		return nil, holderDomain.ErrInsufficientSources
	}

	division := &holderDomain.Division{}
	owed := in.ExactAmount
	for i := range in.Sources {
		if !owed.IsPositive() {
			break
		}
		source := in.Sources[i]
		division.Sources = append(division.Sources, source.Token.ID)

		pay := decimal.Min(owed, source.Token.Amount)
		payment, err := d.derive(source, pay, in.Recipient, paymentOutput, in)
		if err != nil {
			return nil, err
		}
		division.Payment = append(division.Payment, *payment)
		owed = owed.Sub(pay)

		if rest := source.Token.Amount.Sub(pay); rest.IsPositive() {
			change, err := d.derive(source, rest, spender, changeOutput, in)
			if err != nil {
				return nil, err
			}
			division.Change = change
		}
	}

	consumed := decimal.Zero
	for _, id := range division.Sources {
		for i := range in.Sources {
			if in.Sources[i].Token.ID == id {
				consumed = consumed.Add(in.Sources[i].Token.Amount)
			}
		}
	}
	if !division.Total().Equal(consumed) || !division.PaymentTotal().Equal(in.ExactAmount) {
		return nil, holderDomain.ErrDivisionRounding
	}
	return division, nil
}

func (d *Divider) derive(
	source holderDomain.Holding,
	amount decimal.Decimal,
	owner cryptoDomain.PublicKey,
	index uint32,
	in Input,
) (*holderDomain.Holding, error) {
	child := tokenDomain.NewDerivedToken(&source.Token, amount, owner, in.Sequence, index, in.Now)
	if err := child.Sign(d.signer, in.Spender); err != nil {
		return nil, err
	}
	return &holderDomain.Holding{Token: *child, Lineage: source.Child()}, nil
}
