package domain

import "errors"

// ErrInvalidTransition rejects a backward status move. Status only ever
// moves forward; see CanTransition.
var ErrInvalidTransition = errors.New("invalid status transition")

type MessageID string

type MessageStatus string

const (
	StatusQueued    MessageStatus = "queued"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// statusRank orders the happy path queued → delivered → read.
// failed is terminal and reachable only from queued.
var statusRank = map[MessageStatus]int{
	StatusQueued:    0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// CanTransition reports whether status may move from `from` to `to`.
// Status only ever moves forward; a backward move is rejected, not applied.
// Skipping a step is allowed (queued → read), failed only follows queued.
func CanTransition(from, to MessageStatus) bool {
	if from == to {
		return false
	}
	if from == StatusFailed || to == StatusFailed {
		return to == StatusFailed && from == StatusQueued
	}
	return statusRank[to] > statusRank[from]
}

// Message is the hub's view of a chat message. The full record is owned
// by the persistence layer; the hub only ever mutates Status.
type Message struct {
	ID             MessageID      `json:"id"`
	ConversationID ConversationID `json:"conversation_id"`
	Sender         UserID         `json:"sender_id"`
	Status         MessageStatus  `json:"status"`
	Deleted        bool           `json:"deleted"`
}

// ReadMarker records that a user has seen a message. At most one marker
// exists per (message, reader) pair.
type ReadMarker struct {
	MessageID MessageID `json:"message_id"`
	Reader    UserID    `json:"reader_id"`
}
