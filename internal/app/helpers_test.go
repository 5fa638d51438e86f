package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

// fakeConn records every frame it receives. Setting full simulates a
// slow client whose send queue rejects frames.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	full   bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("connection closed")
	}
	if f.full {
		return errors.New("backpressure")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) received() []core.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Frame, len(f.frames))
	copy(out, f.frames)
	return out
}

// eventsOfType decodes the recorded frames and keeps those whose
// envelope type matches.
func eventsOfType(t *testing.T, f *fakeConn, eventType string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, fr := range f.received() {
		var env map[string]any
		require.NoError(t, json.Unmarshal(fr, &env))
		if env["type"] == eventType {
			out = append(out, env)
		}
	}
	return out
}

// fakeStore is an in-memory MessageStore + MembershipStore mirroring
// the semantics of the badger-backed one.
type fakeStore struct {
	mu         sync.Mutex
	msgs       map[domain.MessageID]domain.Message
	readers    map[domain.MessageID]map[domain.UserID]struct{}
	members    map[domain.ConversationID][]domain.UserID
	failUpdate bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		msgs:    make(map[domain.MessageID]domain.Message),
		readers: make(map[domain.MessageID]map[domain.UserID]struct{}),
		members: make(map[domain.ConversationID][]domain.UserID),
	}
}

func (s *fakeStore) addConversation(conv domain.ConversationID, members ...domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[conv] = members
}

func (s *fakeStore) addMessage(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[msg.ID] = msg
}

func (s *fakeStore) Message(_ context.Context, id domain.MessageID) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.msgs[id]
	if !ok {
		return domain.Message{}, core.ErrMessageNotFound
	}
	return msg, nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, id domain.MessageID, status domain.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate && status != domain.StatusFailed {
		return errors.New("write failed")
	}
	msg, ok := s.msgs[id]
	if !ok {
		return core.ErrMessageNotFound
	}
	if !domain.CanTransition(msg.Status, status) {
		return domain.ErrInvalidTransition
	}
	msg.Status = status
	s.msgs[id] = msg
	return nil
}

func (s *fakeStore) MarkRead(_ context.Context, id domain.MessageID, reader domain.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.msgs[id]; !ok {
		return false, core.ErrMessageNotFound
	}
	set, ok := s.readers[id]
	if !ok {
		set = make(map[domain.UserID]struct{})
		s.readers[id] = set
	}
	if _, dup := set[reader]; dup {
		return false, nil
	}
	set[reader] = struct{}{}
	return true, nil
}

func (s *fakeStore) Readers(_ context.Context, id domain.MessageID) ([]domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UserID
	for r := range s.readers[id] {
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeStore) CountUnread(_ context.Context, conv domain.ConversationID, user domain.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[conv]; !ok {
		return 0, core.ErrConversationNotFound
	}
	count := 0
	for id, msg := range s.msgs {
		if msg.ConversationID != conv || msg.Sender == user || msg.Deleted {
			continue
		}
		if _, read := s.readers[id][user]; read {
			continue
		}
		count++
	}
	return count, nil
}

func (s *fakeStore) IsMember(_ context.Context, user domain.UserID, conv domain.ConversationID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members[conv] {
		if m == user {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) Members(_ context.Context, conv domain.ConversationID) ([]domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[conv], nil
}

func (s *fakeStore) status(t *testing.T, id domain.MessageID) domain.MessageStatus {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.msgs[id]
	if !ok {
		t.Fatalf("message %s not in store", id)
	}
	return msg.Status
}
