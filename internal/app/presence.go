package app

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

// PresenceRegistry maps a user identity to the set of its currently-open
// connections. A user is online iff it owns at least one connection; the
// entry is removed the instant the set becomes empty.
type PresenceRegistry struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]map[core.ConnectionID]struct{}
	owner  map[core.ConnectionID]domain.UserID
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		byUser: make(map[domain.UserID]map[core.ConnectionID]struct{}),
		owner:  make(map[core.ConnectionID]domain.UserID),
	}
}

// Register adds the connection under the user and reports whether it is
// the user's first open connection. Idempotent per connection.
func (p *PresenceRegistry) Register(user domain.UserID, conn core.ConnectionID) (first bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.owner[conn]; ok {
		return false
	}
	set, ok := p.byUser[user]
	if !ok {
		set = make(map[core.ConnectionID]struct{})
		p.byUser[user] = set
	}
	set[conn] = struct{}{}
	p.owner[conn] = user
	log.Info().Str("module", "app.presence").Str("user", string(user)).Str("conn", string(conn)).Bool("first", !ok).Msg("registered connection")
	return !ok
}

// Unregister removes the connection and reports whether it was the
// user's last one. Unknown connections are a no-op, never an error,
// since disconnects race with application logic.
func (p *PresenceRegistry) Unregister(conn core.ConnectionID) (user domain.UserID, last bool, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok = p.owner[conn]
	if !ok {
		return "", false, false
	}
	delete(p.owner, conn)
	set := p.byUser[user]
	delete(set, conn)
	if len(set) == 0 {
		delete(p.byUser, user)
		last = true
	}
	log.Info().Str("module", "app.presence").Str("user", string(user)).Str("conn", string(conn)).Bool("last", last).Msg("unregistered connection")
	return user, last, true
}

func (p *PresenceRegistry) IsOnline(user domain.UserID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser[user]) > 0
}

func (p *PresenceRegistry) ConnectionsOf(user domain.UserID) []core.ConnectionID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lo.Keys(p.byUser[user])
}

// Online answers the online flag for each of the given users, used to
// serve client roster queries in one pass.
func (p *PresenceRegistry) Online(users []domain.UserID) map[domain.UserID]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lo.SliceToMap(users, func(u domain.UserID) (domain.UserID, bool) {
		return u, len(p.byUser[u]) > 0
	})
}
