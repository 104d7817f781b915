// Package transfer implements the peer-to-peer transfer protocol between two holder devices.
//
// A sender session moves through Idle, Offered, Signed, Acknowledged and Committed, with Failed
// reachable from every non-terminal state. The holder store lock is only taken for the short
// state transitions; waiting on the channel never holds it.
package transfer

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/offcash/internal/errors"
	holderDomain "github.com/allisson/offcash/internal/holder/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

var (
	// ErrInvalidTransition indicates an operation not allowed in the session's current state.
	ErrInvalidTransition = apperrors.Wrap(apperrors.ErrConflict, "invalid transfer state transition")

	// ErrCompensationRequired indicates an abandon after the recipient acknowledged.
	ErrCompensationRequired = apperrors.Wrap(apperrors.ErrConflict, "transfer acknowledged, compensation required")

	// ErrAckTimeout indicates no acknowledgement arrived. The session stays resumable.
	ErrAckTimeout = apperrors.Wrap(apperrors.ErrTransport, "acknowledgement not received")

	// ErrRejected indicates the recipient refused the transfer.
	ErrRejected = apperrors.Wrap(apperrors.ErrInvalidInput, "transfer rejected by recipient")

	// ErrNotRecipient indicates a record addressed to another key.
	ErrNotRecipient = apperrors.Wrap(apperrors.ErrInvalidInput, "transfer not addressed to this holder")
)

// State is the protocol state of a sender session.
type State string

const (
	StateIdle         State = "idle"
	StateOffered      State = "offered"
	StateSigned       State = "signed"
	StateAcknowledged State = "acknowledged"
	StateCommitted    State = "committed"
	StateFailed       State = "failed"
)

var transitions = map[State]State{
	StateIdle:         StateOffered,
	StateOffered:      StateSigned,
	StateSigned:       StateAcknowledged,
	StateAcknowledged: StateCommitted,
}

// IsTerminal reports whether the session is finished.
func (s State) IsTerminal() bool {
	return s == StateCommitted || s == StateFailed
}

// CanTransitionTo reports whether next directly follows s.
func (s State) CanTransitionTo(next State) bool {
	if s.IsTerminal() {
		return false
	}
	return next == StateFailed || transitions[s] == next
}

// Session is the sender side of one transfer. It is persisted in the holder store from Offered
// until it commits or fails.
type Session struct {
	ID              uuid.UUID                  `json:"id"`
	State           State                      `json:"state"`
	ReservationID   uuid.UUID                  `json:"reservation_id"`
	Record          tokenDomain.TransferRecord `json:"record"`
	Change          *holderDomain.Holding      `json:"change,omitempty"`
	Acknowledgement []byte                     `json:"acknowledgement,omitempty"`
	FailureReason   string                     `json:"failure_reason,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

func (s *Session) transition(next State, now time.Time) error {
	if !s.State.CanTransitionTo(next) {
		return apperrors.Wrap(ErrInvalidTransition, string(s.State)+" to "+string(next))
	}
	s.State = next
	s.UpdatedAt = now.UTC()
	return nil
}

// result is the local effect of the session on the sender store.
func (s *Session) result() holderDomain.TransferResult {
	result := holderDomain.TransferResult{
		Spent:       s.Record.TokenIDs,
		SpentStatus: tokenDomain.StatusTransferred,
		SessionID:   s.ID,
	}
	if s.Change != nil {
		result.Added = []holderDomain.Holding{*s.Change}
	}
	return result
}
