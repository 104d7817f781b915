// Package domain defines the holder-side records kept on a device: held tokens with their
// lineage, the cached issuer key and the local effects of transfers.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// Holding is a token held by the device together with the ancestors needed to prove it.
// Token.Status is the durable lifecycle column.
type Holding struct {
	Token      tokenDomain.Token   `json:"token"`
	Lineage    tokenDomain.Lineage `json:"lineage"`
	ReservedBy *uuid.UUID          `json:"reserved_by,omitempty"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// IsAvailable reports whether the holding can be picked by a new reservation at now.
func (h *Holding) IsAvailable(now time.Time) bool {
	return h.ReservedBy == nil && h.Token.IsSpendable(now)
}

// Child returns the lineage a token derived from this holding carries.
func (h *Holding) Child() tokenDomain.Lineage {
	return h.Lineage.Extend(h.Token)
}

// Reservation pins a set of holdings for one outgoing transfer.
type Reservation struct {
	ID       uuid.UUID       `json:"id"`
	Holdings []Holding       `json:"holdings"`
	Total    decimal.Decimal `json:"total"`
}

// TokenIDs returns the ids of the reserved tokens.
func (r *Reservation) TokenIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(r.Holdings))
	for i := range r.Holdings {
		ids[i] = r.Holdings[i].Token.ID
	}
	return ids
}

// Division is the result of splitting reserved sources into a payment and change.
type Division struct {
	Sources []uuid.UUID `json:"sources"`
	Payment []Holding   `json:"payment"`
	Change  *Holding    `json:"change,omitempty"`
}

// PaymentTotal sums the payment outputs.
func (d *Division) PaymentTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range d.Payment {
		total = total.Add(d.Payment[i].Token.Amount)
	}
	return total
}

// Total sums every output of the division.
func (d *Division) Total() decimal.Decimal {
	total := d.PaymentTotal()
	if d.Change != nil {
		total = total.Add(d.Change.Token.Amount)
	}
	return total
}

// TransferResult is the local effect of a finished transfer or division, applied atomically.
type TransferResult struct {
	// Spent move to SpentStatus.
	Spent       []uuid.UUID        `json:"spent"`
	SpentStatus tokenDomain.Status `json:"spent_status"`
	// Added are stored active unless already present.
	Added []Holding `json:"added"`
	// Incoming is recorded under its replay key on the receiving device.
	Incoming *tokenDomain.TransferRecord `json:"incoming,omitempty"`
	// SessionID is the pending outgoing session completed by this result.
	SessionID uuid.UUID `json:"session_id"`
}

// IssuerKey is the last known issuer verification key, cached for offline verification.
type IssuerKey struct {
	Identifier string                 `json:"identifier"`
	PublicKey  cryptoDomain.PublicKey `json:"public_key"`
	ExpiresAt  *time.Time             `json:"expires_at,omitempty"`
	FetchedAt  time.Time              `json:"fetched_at"`
}

// CompensationRecord documents a transfer abandoned after the recipient acknowledged it.
type CompensationRecord struct {
	SessionID       uuid.UUID                  `json:"session_id"`
	Record          tokenDomain.TransferRecord `json:"record"`
	Acknowledgement []byte                     `json:"acknowledgement"`
	Reason          string                     `json:"reason"`
	CreatedAt       time.Time                  `json:"created_at"`
}
