// Package domain defines the outcome of reclaiming value from expired tokens.
package domain

import (
	"github.com/shopspring/decimal"
)

// SweepReport summarizes one expiration sweep.
//
// Expired counts records that still had unredeemed value, which was refunded to the funding
// account. Settled counts records whose value had been fully redeemed before expiry.
type SweepReport struct {
	Expired  int
	Settled  int
	Refunded decimal.Decimal
}

// Total returns the number of issuance records the sweep closed.
func (r *SweepReport) Total() int {
	return r.Expired + r.Settled
}
