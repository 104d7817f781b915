package domain

import (
	"time"

	"github.com/google/uuid"
)

// DoubleSpendAudit annotates a rejected claim. It never removes or alters ledger rows.
//
// Claim holds the submitted claim as JSON. Signature is an HMAC over the canonical audit
// fields so tampering with stored records is detectable.
type DoubleSpendAudit struct {
	ID                      uuid.UUID
	TokenID                 uuid.UUID
	ConflictingTokenID      uuid.UUID
	ConflictingRedemptionID *uuid.UUID
	AccountID               uuid.UUID
	Claim                   string
	Reason                  string
	Signature               []byte
	CreatedAt               time.Time
}

// DoubleSpendEvent is the payload of the security.double_spend outbox event.
type DoubleSpendEvent struct {
	AuditID                 uuid.UUID  `json:"audit_id"`
	TokenID                 uuid.UUID  `json:"token_id"`
	RootTokenID             uuid.UUID  `json:"root_token_id"`
	ConflictingTokenID      uuid.UUID  `json:"conflicting_token_id"`
	ConflictingRedemptionID *uuid.UUID `json:"conflicting_redemption_id,omitempty"`
	AccountID               uuid.UUID  `json:"account_id"`
	OwnerPublicKey          string     `json:"owner_public_key"`
	Amount                  string     `json:"amount"`
	Reason                  string     `json:"reason"`
	DetectedAt              time.Time  `json:"detected_at"`
}

// EventTypeDoubleSpend is the outbox event type emitted for every rejected double spend.
const EventTypeDoubleSpend = "security.double_spend"

// VerificationReport summarizes an integrity check of the audit trail.
type VerificationReport struct {
	TotalChecked  int64
	ValidCount    int64
	InvalidCount  int64
	InvalidAudits []uuid.UUID
}
