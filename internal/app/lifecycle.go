package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

var ErrNotAMember = errors.New("not a conversation member")

// MessageLifecycle owns the status transitions of a chat message
// (queued → delivered → read, or queued → failed) and the per-user
// unread counts. Every transition triggers a conversation-room
// broadcast. Persistence calls are the only blocking operations here.
type MessageLifecycle struct {
	router   *RoomRouter
	messages core.MessageStore
	members  core.MembershipStore
	delay    time.Duration

	mu      sync.Mutex
	timers  map[domain.MessageID]*time.Timer
	stopped bool
}

func NewMessageLifecycle(router *RoomRouter, messages core.MessageStore, members core.MembershipStore, delay time.Duration) *MessageLifecycle {
	return &MessageLifecycle{
		router:   router,
		messages: messages,
		members:  members,
		delay:    delay,
		timers:   make(map[domain.MessageID]*time.Timer),
	}
}

// EmitNewMessage is invoked by the persistence layer after it durably
// commits a message, so the DB-commit-then-broadcast order is
// preserved. It fans the message out to the conversation room and
// schedules the queued → delivered transition.
func (l *MessageLifecycle) EmitNewMessage(conversation domain.ConversationID, msg domain.Message) {
	l.router.BroadcastToRoom(domain.ConversationRoom(conversation), encode(MessageNew{
		Type:           EvtMessageNew,
		ConversationID: conversation,
		Message:        msg,
	}))
	l.scheduleDelivery(msg.ID)
}

// scheduleDelivery arms a cancellable timer simulating delivery
// latency. A zero delay runs the transition synchronously, which keeps
// tests deterministic.
func (l *MessageLifecycle) scheduleDelivery(id domain.MessageID) {
	if l.delay <= 0 {
		l.OnSent(context.Background(), id)
		return
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	if prev, ok := l.timers[id]; ok {
		prev.Stop()
	}
	l.timers[id] = time.AfterFunc(l.delay, func() {
		l.mu.Lock()
		delete(l.timers, id)
		stopped := l.stopped
		l.mu.Unlock()
		if stopped {
			return
		}
		l.OnSent(context.Background(), id)
	})
	l.mu.Unlock()
}

// CancelDelivery stops a pending delivery transition, used when the
// message is deleted before the timer fires.
func (l *MessageLifecycle) CancelDelivery(id domain.MessageID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.timers[id]; ok {
		t.Stop()
		delete(l.timers, id)
	}
}

// OnSent transitions queued → delivered once the author's write is
// durable. A persistence failure resolves to the failed status instead
// of propagating to connected clients.
func (l *MessageLifecycle) OnSent(ctx context.Context, id domain.MessageID) {
	msg, err := l.messages.Message(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.lifecycle").Str("message", string(id)).Msg("onSent lookup")
		return
	}
	if msg.Deleted || !domain.CanTransition(msg.Status, domain.StatusDelivered) {
		return
	}
	status := domain.StatusDelivered
	if err := l.messages.UpdateStatus(ctx, id, status); errors.Is(err, domain.ErrInvalidTransition) {
		// Lost a race with a markRead that skipped delivered.
		return
	} else if err != nil {
		log.Error().Err(err).Str("module", "app.lifecycle").Str("message", string(id)).Msg("delivery write failed")
		status = domain.StatusFailed
		if err := l.messages.UpdateStatus(ctx, id, status); err != nil {
			log.Error().Err(err).Str("module", "app.lifecycle").Str("message", string(id)).Msg("failed-status write")
		}
	}
	l.EmitStatusChanged(msg.ConversationID, id, status)
}

// MarkRead idempotently records that reader has seen the message. When
// every member other than the sender holds a marker, the status moves
// to read and a read receipt is broadcast to the conversation room.
func (l *MessageLifecycle) MarkRead(ctx context.Context, id domain.MessageID, reader domain.UserID) error {
	msg, err := l.messages.Message(ctx, id)
	if err != nil {
		return err
	}
	member, err := l.members.IsMember(ctx, reader, msg.ConversationID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotAMember
	}
	fresh, err := l.messages.MarkRead(ctx, id, reader)
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}
	fully, err := l.fullyRead(ctx, msg)
	if err != nil {
		return err
	}
	if !fully || !domain.CanTransition(msg.Status, domain.StatusRead) {
		return nil
	}
	if err := l.messages.UpdateStatus(ctx, id, domain.StatusRead); err != nil {
		return err
	}
	l.EmitReadReceipt(msg.ConversationID, id, reader)
	return nil
}

// fullyRead reports whether every conversation member except the sender
// holds a read marker for the message.
func (l *MessageLifecycle) fullyRead(ctx context.Context, msg domain.Message) (bool, error) {
	members, err := l.members.Members(ctx, msg.ConversationID)
	if err != nil {
		return false, err
	}
	readers, err := l.messages.Readers(ctx, msg.ID)
	if err != nil {
		return false, err
	}
	expected := lo.Without(members, msg.Sender)
	return lo.Every(readers, expected), nil
}

// UnreadCount computes, per conversation, the number of messages not
// authored by user, not deleted, and lacking a read marker for user.
// Unknown conversation ids are omitted rather than erroring.
func (l *MessageLifecycle) UnreadCount(ctx context.Context, user domain.UserID, conversations []domain.ConversationID) (map[domain.ConversationID]int, error) {
	out := make(map[domain.ConversationID]int, len(conversations))
	for _, conv := range conversations {
		n, err := l.messages.CountUnread(ctx, conv, user)
		if errors.Is(err, core.ErrConversationNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[conv] = n
	}
	return out, nil
}

// EmitStatusChanged broadcasts a status transition to the conversation
// room. Exposed for the persistence layer as well as used internally.
func (l *MessageLifecycle) EmitStatusChanged(conversation domain.ConversationID, id domain.MessageID, status domain.MessageStatus) {
	l.router.BroadcastToRoom(domain.ConversationRoom(conversation), encode(MessageStatusChanged{
		Type:           EvtMessageStatusChanged,
		ConversationID: conversation,
		MessageID:      id,
		Status:         status,
	}))
}

// EmitReadReceipt broadcasts a read receipt to the conversation room.
func (l *MessageLifecycle) EmitReadReceipt(conversation domain.ConversationID, id domain.MessageID, reader domain.UserID) {
	l.router.BroadcastToRoom(domain.ConversationRoom(conversation), encode(MessageRead{
		Type:           EvtMessageRead,
		ConversationID: conversation,
		MessageID:      id,
		Reader:         reader,
	}))
}

// Stop cancels all pending delivery timers. Further scheduling becomes
// a no-op.
func (l *MessageLifecycle) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}
