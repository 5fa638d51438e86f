package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Membership(t *testing.T) {
	req := require.New(t)
	s := openStore(t)
	ctx := context.Background()

	req.NoError(s.CreateConversation(ctx, "conv", "alice", "bob"))

	ok, err := s.IsMember(ctx, "alice", "conv")
	req.NoError(err)
	req.True(ok)

	ok, err = s.IsMember(ctx, "mallory", "conv")
	req.NoError(err)
	req.False(ok)

	members, err := s.Members(ctx, "conv")
	req.NoError(err)
	req.ElementsMatch([]domain.UserID{"alice", "bob"}, members)
}

func TestStore_MessageRoundTrip(t *testing.T) {
	req := require.New(t)
	s := openStore(t)
	ctx := context.Background()
	req.NoError(s.CreateConversation(ctx, "conv", "alice", "bob"))

	msg := domain.Message{ID: "m1", ConversationID: "conv", Sender: "alice", Status: domain.StatusQueued}
	req.NoError(s.CreateMessage(ctx, msg))

	got, err := s.Message(ctx, "m1")
	req.NoError(err)
	req.Equal(msg, got)

	_, err = s.Message(ctx, "ghost")
	req.ErrorIs(err, core.ErrMessageNotFound)
}

func TestStore_CreateMessageUnknownConversation(t *testing.T) {
	req := require.New(t)
	s := openStore(t)

	err := s.CreateMessage(context.Background(), domain.Message{ID: "m1", ConversationID: "ghost", Sender: "alice"})
	req.ErrorIs(err, core.ErrConversationNotFound)
}

func TestStore_UpdateStatusForwardOnly(t *testing.T) {
	req := require.New(t)
	s := openStore(t)
	ctx := context.Background()
	req.NoError(s.CreateConversation(ctx, "conv", "alice", "bob"))
	req.NoError(s.CreateMessage(ctx, domain.Message{ID: "m1", ConversationID: "conv", Sender: "alice", Status: domain.StatusQueued}))

	req.NoError(s.UpdateStatus(ctx, "m1", domain.StatusDelivered))
	req.NoError(s.UpdateStatus(ctx, "m1", domain.StatusRead))

	err := s.UpdateStatus(ctx, "m1", domain.StatusDelivered)
	req.ErrorIs(err, domain.ErrInvalidTransition)

	got, err := s.Message(ctx, "m1")
	req.NoError(err)
	req.Equal(domain.StatusRead, got.Status, "rejected transition must not be applied")
}

func TestStore_ReadMarkers(t *testing.T) {
	req := require.New(t)
	s := openStore(t)
	ctx := context.Background()
	req.NoError(s.CreateConversation(ctx, "conv", "alice", "bob"))
	req.NoError(s.CreateMessage(ctx, domain.Message{ID: "m1", ConversationID: "conv", Sender: "alice", Status: domain.StatusQueued}))

	fresh, err := s.MarkRead(ctx, "m1", "bob")
	req.NoError(err)
	req.True(fresh)

	fresh, err = s.MarkRead(ctx, "m1", "bob")
	req.NoError(err)
	req.False(fresh, "second marker for the same pair is not fresh")

	readers, err := s.Readers(ctx, "m1")
	req.NoError(err)
	req.Equal([]domain.UserID{"bob"}, readers)

	_, err = s.MarkRead(ctx, "ghost", "bob")
	req.ErrorIs(err, core.ErrMessageNotFound)
}

func TestStore_SeparatorInIdentifiers(t *testing.T) {
	req := require.New(t)
	s := openStore(t)
	ctx := context.Background()
	req.NoError(s.CreateConversation(ctx, "conv", "alice", "team:ops"))
	req.NoError(s.CreateMessage(ctx, domain.Message{ID: "m", ConversationID: "conv", Sender: "alice", Status: domain.StatusQueued}))
	req.NoError(s.CreateMessage(ctx, domain.Message{ID: "m:x", ConversationID: "conv", Sender: "alice", Status: domain.StatusQueued}))

	// A marker for "m:x" must not surface as a reader of "m".
	fresh, err := s.MarkRead(ctx, "m:x", "team:ops")
	req.NoError(err)
	req.True(fresh)

	readers, err := s.Readers(ctx, "m")
	req.NoError(err)
	req.Empty(readers)

	readers, err = s.Readers(ctx, "m:x")
	req.NoError(err)
	req.Equal([]domain.UserID{"team:ops"}, readers)

	members, err := s.Members(ctx, "conv")
	req.NoError(err)
	req.ElementsMatch([]domain.UserID{"alice", "team:ops"}, members)
}

func TestStore_CountUnread(t *testing.T) {
	req := require.New(t)
	s := openStore(t)
	ctx := context.Background()
	req.NoError(s.CreateConversation(ctx, "conv", "alice", "bob"))

	for _, m := range []domain.Message{
		{ID: "b1", ConversationID: "conv", Sender: "bob", Status: domain.StatusQueued},
		{ID: "b2", ConversationID: "conv", Sender: "bob", Status: domain.StatusQueued},
		{ID: "b3", ConversationID: "conv", Sender: "bob", Status: domain.StatusQueued},
		{ID: "a1", ConversationID: "conv", Sender: "alice", Status: domain.StatusQueued},
	} {
		req.NoError(s.CreateMessage(ctx, m))
	}

	n, err := s.CountUnread(ctx, "conv", "alice")
	req.NoError(err)
	req.Equal(3, n, "own messages do not count")

	_, err = s.MarkRead(ctx, "b1", "alice")
	req.NoError(err)
	n, err = s.CountUnread(ctx, "conv", "alice")
	req.NoError(err)
	req.Equal(2, n)

	// Deleted messages drop out of the count.
	req.NoError(s.DeleteMessage(ctx, "b2"))
	n, err = s.CountUnread(ctx, "conv", "alice")
	req.NoError(err)
	req.Equal(1, n)

	_, err = s.CountUnread(ctx, "ghost", "alice")
	req.ErrorIs(err, core.ErrConversationNotFound)
}
