package app

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

// Outbound event names. The wire format is a JSON envelope whose "type"
// field carries one of these.
const (
	EvtPresenceChanged      = "presence-changed"
	EvtMessageNew           = "message-new"
	EvtMessageStatusChanged = "message-status-changed"
	EvtMessageRead          = "message-read"
	EvtTypingChanged        = "typing-changed"
	EvtCallIncoming         = "call-incoming"
	EvtCallAnswered         = "call-answered"
	EvtCallCandidate        = "call-ice-candidate"
	EvtCallEnded            = "call-ended"
	EvtCallRejected         = "call-rejected"
)

type PresenceChanged struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"user_id"`
	Online bool          `json:"online"`
}

type MessageNew struct {
	Type           string                `json:"type"`
	ConversationID domain.ConversationID `json:"conversation_id"`
	Message        domain.Message        `json:"message"`
}

type MessageStatusChanged struct {
	Type           string                `json:"type"`
	ConversationID domain.ConversationID `json:"conversation_id"`
	MessageID      domain.MessageID      `json:"message_id"`
	Status         domain.MessageStatus  `json:"status"`
}

type MessageRead struct {
	Type           string                `json:"type"`
	ConversationID domain.ConversationID `json:"conversation_id"`
	MessageID      domain.MessageID      `json:"message_id"`
	Reader         domain.UserID         `json:"reader_id"`
}

type TypingChanged struct {
	Type           string                `json:"type"`
	ConversationID domain.ConversationID `json:"conversation_id"`
	UserID         domain.UserID         `json:"user_id"`
	Typing         bool                  `json:"typing"`
}

type CallIncoming struct {
	Type   string                    `json:"type"`
	Caller domain.UserID             `json:"caller_id"`
	Kind   domain.CallKind           `json:"kind"`
	Offer  webrtc.SessionDescription `json:"offer"`
}

type CallAnswered struct {
	Type   string                    `json:"type"`
	Answer webrtc.SessionDescription `json:"answer"`
}

type CallCandidate struct {
	Type      string                  `json:"type"`
	From      domain.UserID           `json:"from_id"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type CallEnded struct {
	Type string        `json:"type"`
	Peer domain.UserID `json:"peer_id"`
}

type CallRejected struct {
	Type   string        `json:"type"`
	Callee domain.UserID `json:"callee_id"`
}

// encode marshals an outbound event for the wire. A nil frame is
// returned on marshal failure; broadcasts skip nil frames.
func encode(v any) core.Frame {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.events").Msg("encode event")
		return nil
	}
	return b
}
