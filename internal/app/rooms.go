package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

// PublishResult reports delivery stats for one broadcast.
type PublishResult struct {
	SentTo  int
	Dropped int
}

// RoomRouter maintains named broadcast groups of connections. Rooms are
// created implicitly on first join and vanish implicitly when empty.
//
// Delivery is FIFO per room for broadcasts issued from the same
// goroutine: members are enumerated and written under the router lock,
// and each connection's send queue preserves order. A slow member is
// dropped for that event only (TrySend backpressure), never aborting
// delivery to the remaining members.
type RoomRouter struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomName]map[core.ConnectionID]struct{}
	joined map[core.ConnectionID]map[domain.RoomName]struct{}
	conns  map[core.ConnectionID]core.SignalConnection
}

func NewRoomRouter() *RoomRouter {
	return &RoomRouter{
		rooms:  make(map[domain.RoomName]map[core.ConnectionID]struct{}),
		joined: make(map[core.ConnectionID]map[domain.RoomName]struct{}),
		conns:  make(map[core.ConnectionID]core.SignalConnection),
	}
}

// Attach binds a transport handle to a connection id. The handle stays
// owned by the adapter; the router never closes it except in Shutdown.
func (r *RoomRouter) Attach(id core.ConnectionID, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = conn
}

// Detach removes the connection from every room and drops its handle.
// Unknown ids are a no-op.
func (r *RoomRouter) Detach(id core.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.joined[id] {
		r.dropLocked(id, room)
	}
	delete(r.joined, id)
	delete(r.conns, id)
}

// Join adds the connection to a room. Idempotent; a no-op for a
// connection with no attached handle.
func (r *RoomRouter) Join(id core.ConnectionID, room domain.RoomName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return
	}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[core.ConnectionID]struct{})
		r.rooms[room] = members
	}
	members[id] = struct{}{}
	set, ok := r.joined[id]
	if !ok {
		set = make(map[domain.RoomName]struct{})
		r.joined[id] = set
	}
	set[room] = struct{}{}
	log.Debug().Str("module", "app.rooms").Str("conn", string(id)).Str("room", string(room)).Msg("joined room")
}

// Leave removes the connection from a room. Idempotent.
func (r *RoomRouter) Leave(id core.ConnectionID, room domain.RoomName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(id, room)
	delete(r.joined[id], room)
}

func (r *RoomRouter) dropLocked(id core.ConnectionID, room domain.RoomName) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// BroadcastToRoom delivers the frame to every member of the room except
// the optionally excluded connections (so a sender does not receive its
// own typing echo through the room).
func (r *RoomRouter) BroadcastToRoom(room domain.RoomName, f core.Frame, exclude ...core.ConnectionID) PublishResult {
	if f == nil {
		return PublishResult{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for id := range r.rooms[room] {
		if excluded(id, exclude) {
			continue
		}
		conn, ok := r.conns[id]
		if !ok {
			continue
		}
		if err := conn.TrySend(f); err != nil {
			res.Dropped++
			continue
		}
		res.SentTo++
	}
	if res.Dropped > 0 {
		log.Debug().Str("module", "app.rooms").Str("room", string(room)).Int("sent_to", res.SentTo).Int("dropped", res.Dropped).Msg("broadcast dropped slow members")
	}
	return res
}

// BroadcastToUser delivers to every device of the user regardless of
// which conversation rooms they have joined.
func (r *RoomRouter) BroadcastToUser(user domain.UserID, f core.Frame) PublishResult {
	return r.BroadcastToRoom(domain.UserRoom(user), f)
}

// BroadcastAll delivers to every attached connection, used for
// out-of-band notifications such as presence changes.
func (r *RoomRouter) BroadcastAll(f core.Frame, exclude ...core.ConnectionID) PublishResult {
	if f == nil {
		return PublishResult{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for id, conn := range r.conns {
		if excluded(id, exclude) {
			continue
		}
		if err := conn.TrySend(f); err != nil {
			res.Dropped++
			continue
		}
		res.SentTo++
	}
	return res
}

// MemberCount reports the current size of a room; zero for a room that
// does not exist.
func (r *RoomRouter) MemberCount(room domain.RoomName) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Shutdown closes every attached connection and clears all state.
func (r *RoomRouter) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.conns {
		conn.Close()
	}
	r.rooms = make(map[domain.RoomName]map[core.ConnectionID]struct{})
	r.joined = make(map[core.ConnectionID]map[domain.RoomName]struct{})
	r.conns = make(map[core.ConnectionID]core.SignalConnection)
}

func excluded(id core.ConnectionID, exclude []core.ConnectionID) bool {
	for _, e := range exclude {
		if id == e {
			return true
		}
	}
	return false
}
