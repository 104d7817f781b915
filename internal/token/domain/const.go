// Package domain defines the value-bearing artifacts exchanged between the issuer, holder
// devices and the authority: tokens, their signature lineage, transfer records and
// redemption claims.
package domain

// AmountScale is the number of decimal places every amount is expressed in.
// Amounts with more precision are rejected rather than rounded.
const AmountScale = 2

// Domain separation tags for signed payloads.
const (
	rootTokenTag    = "offcash/token/root/v1"
	derivedTokenTag = "offcash/token/derived/v1"
	derivedIDTag    = "offcash/token/derived-id/v1"
	transferTag     = "offcash/transfer/v1"
	transferAckTag  = "offcash/transfer/ack/v1"
	claimTag        = "offcash/claim/v1"
)

// Status is the lifecycle state of a token. It is the only mutable field of a token.
type Status string

const (
	StatusActive             Status = "active"
	StatusDivided            Status = "divided"
	StatusTransferred        Status = "transferred"
	StatusRedeemed           Status = "redeemed"
	StatusExpired            Status = "expired"
	StatusDoubleSpendFlagged Status = "double-spend-flagged"
)

// Validate checks if the status is known.
func (s Status) Validate() error {
	switch s {
	case StatusActive, StatusDivided, StatusTransferred, StatusRedeemed, StatusExpired, StatusDoubleSpendFlagged:
		return nil
	default:
		return ErrInvalidStatus
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusRedeemed || s == StatusExpired || s == StatusDoubleSpendFlagged
}

// CanTransitionTo reports whether a token in status s may move to next.
// Re-applying the current status is always allowed so result application stays idempotent.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusActive:
		return next != StatusActive
	case StatusDivided, StatusTransferred:
		return next == StatusExpired || next == StatusDoubleSpendFlagged
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Outcome is the authoritative verdict on a redemption claim.
type Outcome string

const (
	OutcomeRedeemed            Outcome = "redeemed"
	OutcomeDoubleSpendRejected Outcome = "double-spend-rejected"
	OutcomeInvalid             Outcome = "invalid"
)
