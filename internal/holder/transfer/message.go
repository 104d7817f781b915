package transfer

import (
	"github.com/google/uuid"

	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// MessageType tags a message on the peer channel.
type MessageType string

const (
	MessageOffer       MessageType = "transfer_offer"
	MessageAck         MessageType = "transfer_ack"
	MessageStatusQuery MessageType = "transfer_status_query"
	MessageStatus      MessageType = "transfer_status"
)

// Message is the envelope carried by a Channel. Exactly one payload field is set.
type Message struct {
	Type   MessageType  `json:"type"`
	Offer  *Offer       `json:"offer,omitempty"`
	Ack    *Ack         `json:"ack,omitempty"`
	Query  *StatusQuery `json:"query,omitempty"`
	Status *Status      `json:"status,omitempty"`
}

// Offer carries a transfer record. An offer without a sender signature is a proposal and is
// never acknowledged.
type Offer struct {
	Record tokenDomain.TransferRecord `json:"record"`
}

// Ack carries the receiver acknowledgement, or the reason the record was rejected.
type Ack struct {
	ReplayKey       string `json:"replay_key"`
	Acknowledgement []byte `json:"acknowledgement,omitempty"`
	Rejected        string `json:"rejected,omitempty"`
}

// StatusQuery asks whether the receiver recorded a transfer of these inputs.
type StatusQuery struct {
	TokenIDs       []uuid.UUID `json:"token_ids"`
	SequenceNumber uint64      `json:"sequence_number"`
}

// Status answers a StatusQuery.
type Status struct {
	ReplayKey       string `json:"replay_key"`
	Known           bool   `json:"known"`
	Acknowledgement []byte `json:"acknowledgement,omitempty"`
}

func offerMessage(record tokenDomain.TransferRecord) Message {
	return Message{Type: MessageOffer, Offer: &Offer{Record: record}}
}

func queryMessage(record *tokenDomain.TransferRecord) Message {
	return Message{
		Type:  MessageStatusQuery,
		Query: &StatusQuery{TokenIDs: record.TokenIDs, SequenceNumber: record.SequenceNumber},
	}
}
