package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
)

// TransferRecord is an offline ownership change from a sender to a recipient.
//
// Outputs are the payment tokens handed to the recipient. Change produced by the division
// stays on the sender device and is not part of the record. Lineages[i] holds the ancestors
// of Outputs[i], root first.
type TransferRecord struct {
	TokenIDs                []uuid.UUID            `json:"token_ids"`
	Outputs                 []Token                `json:"outputs"`
	Lineages                []Lineage              `json:"lineages"`
	SenderPublicKey         cryptoDomain.PublicKey `json:"sender_public_key"`
	RecipientPublicKey      cryptoDomain.PublicKey `json:"recipient_public_key"`
	SequenceNumber          uint64                 `json:"sequence_number"`
	CreatedAt               time.Time              `json:"created_at"`
	SenderSignature         []byte                 `json:"sender_signature,omitempty"`
	ReceiverAcknowledgement []byte                 `json:"receiver_acknowledgement,omitempty"`
}

// Digest returns the canonical bytes identifying the finalized record. Both the sender
// signature and the receiver acknowledgement are computed over payloads derived from it.
func (r *TransferRecord) Digest() []byte {
	c := cryptoDomain.NewCanonical(transferTag).Uint64(uint64(len(r.TokenIDs)))
	for _, id := range r.TokenIDs {
		c.Fixed(id[:])
	}
	c.Uint64(uint64(len(r.Outputs)))
	for i := range r.Outputs {
		c.Bytes(r.Outputs[i].SigningPayload()).Bytes(r.Outputs[i].Signature)
	}
	return c.Bytes(r.SenderPublicKey).
		Bytes(r.RecipientPublicKey).
		Uint64(r.SequenceNumber).
		Sum()
}

// AckPayload returns the bytes the recipient signs to acknowledge the record.
func (r *TransferRecord) AckPayload() []byte {
	return cryptoDomain.NewCanonical(transferAckTag).Bytes(r.Digest()).Sum()
}

// ReplayKey identifies the record by its inputs and sequence number.
func (r *TransferRecord) ReplayKey() string {
	return ReplayKey(r.TokenIDs, r.SequenceNumber)
}

// ReplayKey builds the replay guard key for a set of input ids and a sequence number.
// Input order does not matter.
func ReplayKey(tokenIDs []uuid.UUID, sequence uint64) string {
	ids := make([]string, len(tokenIDs))
	for i, id := range tokenIDs {
		ids[i] = id.String()
	}
	sort.Strings(ids)
	return strconv.FormatUint(sequence, 10) + ":" + strings.Join(ids, ",")
}

// Sign attaches the sender signature.
func (r *TransferRecord) Sign(signer Signer, key *cryptoDomain.PrivateKey) error {
	sig, err := signer.Sign(r.Digest(), key)
	if err != nil {
		return err
	}
	r.SenderSignature = sig
	return nil
}

// Acknowledge attaches the receiver acknowledgement.
func (r *TransferRecord) Acknowledge(signer Signer, key *cryptoDomain.PrivateKey) error {
	sig, err := signer.Sign(r.AckPayload(), key)
	if err != nil {
		return err
	}
	r.ReceiverAcknowledgement = sig
	return nil
}

// VerifySenderSignature checks the sender signature over Digest.
func (r *TransferRecord) VerifySenderSignature(verifier Verifier) error {
	if !verifier.Verify(r.Digest(), r.SenderSignature, r.SenderPublicKey) {
		return ErrTransferSignatureInvalid
	}
	return nil
}

// VerifyAcknowledgement checks ack was produced by the recipient over this record.
func (r *TransferRecord) VerifyAcknowledgement(verifier Verifier, ack []byte) error {
	if !verifier.Verify(r.AckPayload(), ack, r.RecipientPublicKey) {
		return ErrAcknowledgementInvalid
	}
	return nil
}

// Verify checks everything a recipient must trust before acknowledging: the sender signature,
// each output's lineage back to the issuer, expiry, that outputs are owned by the recipient
// and that outputs sharing a parent never exceed the parent's value.
func (r *TransferRecord) Verify(verifier Verifier, issuerKey cryptoDomain.PublicKey, now time.Time) error {
	if len(r.TokenIDs) == 0 || len(r.Outputs) == 0 || len(r.Outputs) != len(r.Lineages) {
		return ErrBrokenLineage
	}
	if err := r.VerifySenderSignature(verifier); err != nil {
		return err
	}

	inputs := make(map[uuid.UUID]bool, len(r.TokenIDs))
	for _, id := range r.TokenIDs {
		inputs[id] = true
	}

	spentFromParent := make(map[uuid.UUID]decimal.Decimal)
	outputs := make(map[uuid.UUID]bool, len(r.Outputs))
	for i := range r.Outputs {
		out := &r.Outputs[i]
		lineage := r.Lineages[i]
		if len(lineage) == 0 || out.ParentID == nil || !inputs[*out.ParentID] || outputs[out.ID] {
			return ErrBrokenLineage
		}
		outputs[out.ID] = true
		parent := lineage[len(lineage)-1]
		if !parent.OwnerPublicKey.Equal(r.SenderPublicKey) {
			return ErrBrokenLineage
		}
		if !out.OwnerPublicKey.Equal(r.RecipientPublicKey) || out.SequenceNumber != r.SequenceNumber {
			return ErrBrokenLineage
		}
		if err := VerifyLineage(verifier, issuerKey, out, lineage, now); err != nil {
			return err
		}

		spent := spentFromParent[parent.ID].Add(out.Amount)
		if spent.GreaterThan(parent.Amount) {
			return ErrValueNotConserved
		}
		spentFromParent[parent.ID] = spent
	}
	return nil
}
