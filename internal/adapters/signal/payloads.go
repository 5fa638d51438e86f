package signal

import (
	"github.com/go-playground/validator/v10"
	"github.com/pion/webrtc/v4"
)

// Inbound event names, plus the adapter-level outbound ones. Events the
// hub itself emits are named in the app package.
const (
	EvtAuthenticate      = "authenticate"
	EvtJoinConversation  = "join-conversation"
	EvtLeaveConversation = "leave-conversation"
	EvtTyping            = "typing"
	EvtMarkRead          = "mark-read"
	EvtWhoIsOnline       = "who-is-online"
	EvtPing              = "ping"
	EvtPong              = "pong"
	EvtCallInitiate      = "call-initiate"
	EvtCallAnswer        = "call-answer"
	EvtCallCandidate     = "call-ice-candidate"
	EvtCallReject        = "call-reject"
	EvtCallEnd           = "call-end"
	EvtAuthenticated     = "authenticated"
	EvtError             = "error"
	EvtOnline            = "online"
)

var validate = validator.New()

type authenticatePayload struct {
	Type  string `json:"type"`
	Token string `json:"token" validate:"required"`
}

type conversationPayload struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id" validate:"required"`
}

type typingPayload struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id" validate:"required"`
	Typing         bool   `json:"typing"`
}

type markReadPayload struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id" validate:"required"`
}

type whoIsOnlinePayload struct {
	Type    string   `json:"type"`
	UserIDs []string `json:"user_ids" validate:"required,min=1"`
}

type callInitiatePayload struct {
	Type     string                    `json:"type"`
	CalleeID string                    `json:"callee_id" validate:"required"`
	Kind     string                    `json:"kind" validate:"required,oneof=audio video"`
	Offer    webrtc.SessionDescription `json:"offer"`
}

type callAnswerPayload struct {
	Type   string                    `json:"type"`
	Answer webrtc.SessionDescription `json:"answer"`
}

type callCandidatePayload struct {
	Type      string                  `json:"type"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}
