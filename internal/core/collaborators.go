package core

import (
	"context"
	"errors"

	"github.com/dkeye/Parley/internal/domain"
)

var (
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrMessageNotFound      = errors.New("message not found")
	ErrConversationNotFound = errors.New("conversation not found")
)

// CredentialValidator resolves an already-issued credential token to a
// user identity. Token issuance lives outside the hub.
type CredentialValidator interface {
	Validate(ctx context.Context, token string) (domain.UserID, error)
}

// MessageStore is the persistence collaborator for messages and read
// markers. The hub calls it on status transitions; it never interprets
// message content.
type MessageStore interface {
	Message(ctx context.Context, id domain.MessageID) (domain.Message, error)
	UpdateStatus(ctx context.Context, id domain.MessageID, status domain.MessageStatus) error
	// MarkRead records a read marker and reports whether it is new.
	// Recording an existing marker is a no-op returning false.
	MarkRead(ctx context.Context, id domain.MessageID, reader domain.UserID) (bool, error)
	Readers(ctx context.Context, id domain.MessageID) ([]domain.UserID, error)
	// CountUnread counts messages in the conversation not authored by
	// user, not deleted, and with no read marker for user. Returns
	// ErrConversationNotFound for an unknown conversation.
	CountUnread(ctx context.Context, conversation domain.ConversationID, user domain.UserID) (int, error)
}

// MembershipStore answers conversation membership questions, used to
// authorize room joins and read receipts.
type MembershipStore interface {
	IsMember(ctx context.Context, user domain.UserID, conversation domain.ConversationID) (bool, error)
	Members(ctx context.Context, conversation domain.ConversationID) ([]domain.UserID, error)
}
