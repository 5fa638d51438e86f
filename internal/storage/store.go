// Package storage is the reference persistence collaborator backing
// the hub's message and membership stores with BadgerDB. The hub only
// touches message status and read markers; everything else about the
// records belongs to the surrounding application.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

// Key layout. Messages are grouped under their conversation so unread
// scans are a single prefix iteration; msgidx resolves a bare message
// id back to its conversation.
//
//	conv:<conv>                 conversation existence marker
//	member:<conv>:<user>        conversation membership
//	msg:<conv>:<msg>            message record (JSON)
//	msgidx:<msg>                -> <conv>
//	read:<msg>:<user>           read marker
const (
	prefixConv    = "conv:"
	prefixMember  = "member:"
	prefixMessage = "msg:"
	prefixMsgIdx  = "msgidx:"
	prefixRead    = "read:"
)

type Store struct {
	db *badger.DB
}

// Open opens the store at dir. An empty dir opens an in-memory store,
// used by tests.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreateConversation records a conversation and its initial members.
func (s *Store) CreateConversation(_ context.Context, conv domain.ConversationID, members ...domain.UserID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(prefixConv+string(conv)), nil); err != nil {
			return err
		}
		for _, m := range members {
			if err := txn.Set(memberKey(conv, m), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateMessage durably stores a message. The caller is expected to
// follow up with the hub's EmitNewMessage so broadcast order follows
// commit order.
func (s *Store) CreateMessage(_ context.Context, msg domain.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(prefixConv + string(msg.ConversationID))); err != nil {
			return translateNotFound(err, core.ErrConversationNotFound)
		}
		if err := txn.Set(messageKey(msg.ConversationID, msg.ID), raw); err != nil {
			return err
		}
		return txn.Set([]byte(prefixMsgIdx+string(msg.ID)), []byte(msg.ConversationID))
	})
}

// DeleteMessage flags a message deleted. The record stays; deleted
// messages are excluded from unread counts and delivery transitions.
func (s *Store) DeleteMessage(_ context.Context, id domain.MessageID) error {
	return s.mutateMessage(id, func(msg *domain.Message) error {
		msg.Deleted = true
		return nil
	})
}

func (s *Store) Message(_ context.Context, id domain.MessageID) (domain.Message, error) {
	var msg domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		raw, err := s.readMessage(txn, id)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &msg)
	})
	return msg, err
}

// UpdateStatus applies a forward-only status transition; a backward
// move is rejected with domain.ErrInvalidTransition.
func (s *Store) UpdateStatus(_ context.Context, id domain.MessageID, status domain.MessageStatus) error {
	return s.mutateMessage(id, func(msg *domain.Message) error {
		if !domain.CanTransition(msg.Status, status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, msg.Status, status)
		}
		msg.Status = status
		return nil
	})
}

// MarkRead records a read marker, reporting whether it is new.
func (s *Store) MarkRead(_ context.Context, id domain.MessageID, reader domain.UserID) (bool, error) {
	fresh := false
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := s.readMessage(txn, id); err != nil {
			return err
		}
		key := readKey(id, reader)
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		fresh = true
		return txn.Set(key, nil)
	})
	return fresh, err
}

func (s *Store) Readers(_ context.Context, id domain.MessageID) ([]domain.UserID, error) {
	prefix := []byte(prefixRead + escapeSeg(string(id)) + ":")
	var readers []domain.UserID
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			readers = append(readers, domain.UserID(unescapeSeg(string(it.Item().Key()[len(prefix):]))))
		}
		return nil
	})
	return readers, err
}

func (s *Store) CountUnread(_ context.Context, conv domain.ConversationID, user domain.UserID) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(prefixConv + string(conv))); err != nil {
			return translateNotFound(err, core.ErrConversationNotFound)
		}
		prefix := []byte(prefixMessage + escapeSeg(string(conv)) + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg domain.Message
			if err := it.Item().Value(func(raw []byte) error {
				return json.Unmarshal(raw, &msg)
			}); err != nil {
				return err
			}
			if msg.Sender == user || msg.Deleted {
				continue
			}
			if _, err := txn.Get(readKey(msg.ID, user)); err == nil {
				continue
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

func (s *Store) IsMember(_ context.Context, user domain.UserID, conv domain.ConversationID) (bool, error) {
	member := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(conv, user))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		member = err == nil
		return err
	})
	return member, err
}

func (s *Store) Members(_ context.Context, conv domain.ConversationID) ([]domain.UserID, error) {
	prefix := []byte(prefixMember + escapeSeg(string(conv)) + ":")
	var members []domain.UserID
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			members = append(members, domain.UserID(unescapeSeg(string(it.Item().Key()[len(prefix):]))))
		}
		return nil
	})
	return members, err
}

func (s *Store) mutateMessage(id domain.MessageID, mutate func(*domain.Message) error) error {
	return s.db.Update(func(txn *badger.Txn) error {
		raw, err := s.readMessage(txn, id)
		if err != nil {
			return err
		}
		var msg domain.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return err
		}
		if err := mutate(&msg); err != nil {
			return err
		}
		updated, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return txn.Set(messageKey(msg.ConversationID, msg.ID), updated)
	})
}

func (s *Store) readMessage(txn *badger.Txn, id domain.MessageID) ([]byte, error) {
	idx, err := txn.Get([]byte(prefixMsgIdx + string(id)))
	if err != nil {
		return nil, translateNotFound(err, core.ErrMessageNotFound)
	}
	conv, err := idx.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	item, err := txn.Get(messageKey(domain.ConversationID(conv), id))
	if err != nil {
		log.Error().Err(err).Str("module", "storage").Str("message", string(id)).Msg("message index points at missing record")
		return nil, translateNotFound(err, core.ErrMessageNotFound)
	}
	return item.ValueCopy(nil)
}

func translateNotFound(err, sentinel error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return sentinel
	}
	return err
}

// Identifiers may themselves contain the ':' separator, so every key
// segment is escaped before joining and unescaped when a scan reads it
// back out of a key. Without this a marker for message "m:x" would
// surface as reader "x:…" of message "m".
func escapeSeg(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	return strings.ReplaceAll(s, ":", "%3a")
}

func unescapeSeg(s string) string {
	s = strings.ReplaceAll(s, "%3a", ":")
	return strings.ReplaceAll(s, "%25", "%")
}

func memberKey(conv domain.ConversationID, user domain.UserID) []byte {
	return []byte(prefixMember + escapeSeg(string(conv)) + ":" + escapeSeg(string(user)))
}

func messageKey(conv domain.ConversationID, id domain.MessageID) []byte {
	return []byte(prefixMessage + escapeSeg(string(conv)) + ":" + escapeSeg(string(id)))
}

func readKey(id domain.MessageID, reader domain.UserID) []byte {
	return []byte(prefixRead + escapeSeg(string(id)) + ":" + escapeSeg(string(reader)))
}
