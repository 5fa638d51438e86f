package app

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

// Hub wires the presence registry, room router, call coordinator and
// message lifecycle into one explicitly constructed service with
// injected collaborators. Adapters talk to the hub only; no component
// reaches into another's internal maps.
type Hub struct {
	presence  *PresenceRegistry
	router    *RoomRouter
	calls     *CallCoordinator
	lifecycle *MessageLifecycle

	validator core.CredentialValidator
	members   core.MembershipStore
}

func NewHub(validator core.CredentialValidator, messages core.MessageStore, members core.MembershipStore, deliveryDelay time.Duration) *Hub {
	router := NewRoomRouter()
	return &Hub{
		presence:  NewPresenceRegistry(),
		router:    router,
		calls:     NewCallCoordinator(router),
		lifecycle: NewMessageLifecycle(router, messages, members, deliveryDelay),
		validator: validator,
		members:   members,
	}
}

// Authenticate resolves a credential token to a user identity. On
// failure the connection must be rejected with no state created.
func (h *Hub) Authenticate(ctx context.Context, token string) (domain.UserID, error) {
	return h.validator.Validate(ctx, token)
}

// Register admits an authenticated connection: it joins the user's own
// room and, when it is the user's first connection, announces presence.
func (h *Hub) Register(user domain.UserID, id core.ConnectionID, conn core.SignalConnection) {
	h.router.Attach(id, conn)
	h.router.Join(id, domain.UserRoom(user))
	if h.presence.Register(user, id) {
		h.router.BroadcastAll(encode(PresenceChanged{
			Type:   EvtPresenceChanged,
			UserID: user,
			Online: true,
		}), id)
	}
}

// Unregister removes a connection on transport close. When it was the
// user's last connection the user goes offline, any in-flight call is
// torn down and presence-offline is announced. Unknown connections are
// a no-op since disconnects race with application logic.
func (h *Hub) Unregister(id core.ConnectionID) {
	user, last, ok := h.presence.Unregister(id)
	h.router.Detach(id)
	if !ok || !last {
		return
	}
	h.calls.Disconnected(user)
	h.router.BroadcastAll(encode(PresenceChanged{
		Type:   EvtPresenceChanged,
		UserID: user,
		Online: false,
	}))
}

func (h *Hub) IsOnline(user domain.UserID) bool {
	return h.presence.IsOnline(user)
}

// Online answers the online flag for a roster of users.
func (h *Hub) Online(users []domain.UserID) map[domain.UserID]bool {
	return h.presence.Online(users)
}

// JoinConversation subscribes a connection to a conversation room after
// authorizing membership.
func (h *Hub) JoinConversation(ctx context.Context, user domain.UserID, id core.ConnectionID, conversation domain.ConversationID) error {
	member, err := h.members.IsMember(ctx, user, conversation)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotAMember
	}
	h.router.Join(id, domain.ConversationRoom(conversation))
	return nil
}

func (h *Hub) LeaveConversation(id core.ConnectionID, conversation domain.ConversationID) {
	h.router.Leave(id, domain.ConversationRoom(conversation))
}

// Typing fans a typing indicator out to the conversation room, skipping
// the sender's own connection so it does not receive its echo.
func (h *Hub) Typing(user domain.UserID, id core.ConnectionID, conversation domain.ConversationID, typing bool) {
	h.router.BroadcastToRoom(domain.ConversationRoom(conversation), encode(TypingChanged{
		Type:           EvtTypingChanged,
		ConversationID: conversation,
		UserID:         user,
		Typing:         typing,
	}), id)
}

// Call signaling pass-throughs. Payload blobs are opaque to the hub.

func (h *Hub) InitiateCall(caller, callee domain.UserID, kind domain.CallKind, offer webrtc.SessionDescription) error {
	return h.calls.Initiate(caller, callee, kind, offer)
}

func (h *Hub) AnswerCall(callee domain.UserID, answer webrtc.SessionDescription) error {
	return h.calls.Answer(callee, answer)
}

func (h *Hub) RelayCandidate(from domain.UserID, candidate webrtc.ICECandidateInit) {
	h.calls.RelayCandidate(from, candidate)
}

func (h *Hub) RejectCall(callee domain.UserID) error {
	return h.calls.Reject(callee)
}

func (h *Hub) EndCall(user domain.UserID) {
	h.calls.End(user)
}

// Message lifecycle surface, including the emit hooks the persistence
// layer invokes after its writes are durable.

func (h *Hub) EmitNewMessage(conversation domain.ConversationID, msg domain.Message) {
	h.lifecycle.EmitNewMessage(conversation, msg)
}

func (h *Hub) EmitStatusChanged(conversation domain.ConversationID, id domain.MessageID, status domain.MessageStatus) {
	h.lifecycle.EmitStatusChanged(conversation, id, status)
}

func (h *Hub) EmitReadReceipt(conversation domain.ConversationID, id domain.MessageID, reader domain.UserID) {
	h.lifecycle.EmitReadReceipt(conversation, id, reader)
}

func (h *Hub) MarkRead(ctx context.Context, id domain.MessageID, reader domain.UserID) error {
	return h.lifecycle.MarkRead(ctx, id, reader)
}

func (h *Hub) UnreadCount(ctx context.Context, user domain.UserID, conversations []domain.ConversationID) (map[domain.ConversationID]int, error) {
	return h.lifecycle.UnreadCount(ctx, user, conversations)
}

func (h *Hub) CancelDelivery(id domain.MessageID) {
	h.lifecycle.CancelDelivery(id)
}

// Stop cancels pending lifecycle timers and closes every connection.
func (h *Hub) Stop() {
	h.lifecycle.Stop()
	h.router.Shutdown()
	log.Info().Str("module", "app.hub").Msg("hub stopped")
}
