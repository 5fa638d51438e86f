package app

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/domain"
)

var (
	ErrAlreadyInCall = errors.New("already in call")
	ErrNoActiveCall  = errors.New("no active call")
)

// CallCoordinator relays session descriptions and ICE candidates between
// exactly two identities without interpreting them. One session store,
// two lookup indexes: any identity participates in at most one session
// in either role at a time.
type CallCoordinator struct {
	router *RoomRouter

	mu       sync.Mutex
	byCaller map[domain.UserID]*domain.CallSession
	byCallee map[domain.UserID]*domain.CallSession
}

func NewCallCoordinator(router *RoomRouter) *CallCoordinator {
	return &CallCoordinator{
		router:   router,
		byCaller: make(map[domain.UserID]*domain.CallSession),
		byCallee: make(map[domain.UserID]*domain.CallSession),
	}
}

// Initiate creates a Ringing session and delivers the incoming-call
// event to the callee's devices. A second initiate from the same caller
// before the first resolves fails rather than replacing the session;
// a busy callee fails the same way.
func (c *CallCoordinator) Initiate(caller, callee domain.UserID, kind domain.CallKind, offer webrtc.SessionDescription) error {
	c.mu.Lock()
	if c.busyLocked(caller) || c.busyLocked(callee) {
		c.mu.Unlock()
		return ErrAlreadyInCall
	}
	s := &domain.CallSession{Caller: caller, Callee: callee, Kind: kind, State: domain.CallRinging}
	c.byCaller[caller] = s
	c.byCallee[callee] = s
	c.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("caller", string(caller)).Str("callee", string(callee)).Str("kind", string(kind)).Msg("call initiated")
	c.router.BroadcastToUser(callee, encode(CallIncoming{
		Type:   EvtCallIncoming,
		Caller: caller,
		Kind:   kind,
		Offer:  offer,
	}))
	return nil
}

// Answer transitions the session where callee is the recorded callee
// from Ringing to Connected and forwards the answer to the caller.
func (c *CallCoordinator) Answer(callee domain.UserID, answer webrtc.SessionDescription) error {
	c.mu.Lock()
	s, ok := c.byCallee[callee]
	if !ok || s.State != domain.CallRinging {
		c.mu.Unlock()
		return ErrNoActiveCall
	}
	s.State = domain.CallConnected
	caller := s.Caller
	c.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("caller", string(caller)).Str("callee", string(callee)).Msg("call answered")
	c.router.BroadcastToUser(caller, encode(CallAnswered{
		Type:   EvtCallAnswered,
		Answer: answer,
	}))
	return nil
}

// RelayCandidate forwards an ICE candidate to the other party of the
// sender's current session, whichever role the sender holds. A no-op if
// no session exists for that identity.
func (c *CallCoordinator) RelayCandidate(from domain.UserID, candidate webrtc.ICECandidateInit) {
	c.mu.Lock()
	peer, ok := c.peerLocked(from)
	c.mu.Unlock()
	if !ok {
		return
	}
	c.router.BroadcastToUser(peer, encode(CallCandidate{
		Type:      EvtCallCandidate,
		From:      from,
		Candidate: candidate,
	}))
}

// Reject terminates a Ringing session from the callee side and notifies
// the caller.
func (c *CallCoordinator) Reject(callee domain.UserID) error {
	c.mu.Lock()
	s, ok := c.byCallee[callee]
	if !ok || s.State != domain.CallRinging {
		c.mu.Unlock()
		return ErrNoActiveCall
	}
	s.State = domain.CallRejected
	c.removeLocked(s)
	c.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("caller", string(s.Caller)).Str("callee", string(callee)).Msg("call rejected")
	c.router.BroadcastToUser(s.Caller, encode(CallRejected{
		Type:   EvtCallRejected,
		Callee: callee,
	}))
	return nil
}

// End terminates the session in which user participates in either role
// and notifies the other party. Idempotent; ending a non-existent
// session is a no-op.
func (c *CallCoordinator) End(user domain.UserID) {
	c.terminate(user, domain.CallEnded)
}

// Disconnected terminates on loss of the user's last connection, so a
// dropped call is never left dangling. Invoked by the hub when presence
// reports the user fully offline.
func (c *CallCoordinator) Disconnected(user domain.UserID) {
	c.terminate(user, domain.CallDisconnected)
}

func (c *CallCoordinator) terminate(user domain.UserID, state domain.CallState) {
	c.mu.Lock()
	s, ok := c.sessionLocked(user)
	if !ok {
		c.mu.Unlock()
		return
	}
	s.State = state
	c.removeLocked(s)
	c.mu.Unlock()

	peer := s.Callee
	if user == s.Callee {
		peer = s.Caller
	}
	log.Info().Str("module", "app.calls").Str("user", string(user)).Str("peer", string(peer)).Str("state", string(state)).Msg("call terminated")
	c.router.BroadcastToUser(peer, encode(CallEnded{
		Type: EvtCallEnded,
		Peer: user,
	}))
}

// SessionOf returns a copy of the session the user participates in.
func (c *CallCoordinator) SessionOf(user domain.UserID) (domain.CallSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessionLocked(user)
	if !ok {
		return domain.CallSession{}, false
	}
	return *s, true
}

func (c *CallCoordinator) busyLocked(user domain.UserID) bool {
	_, ok := c.sessionLocked(user)
	return ok
}

func (c *CallCoordinator) peerLocked(user domain.UserID) (domain.UserID, bool) {
	s, ok := c.sessionLocked(user)
	if !ok {
		return "", false
	}
	if user == s.Caller {
		return s.Callee, true
	}
	return s.Caller, true
}

func (c *CallCoordinator) sessionLocked(user domain.UserID) (*domain.CallSession, bool) {
	if s, ok := c.byCaller[user]; ok {
		return s, true
	}
	if s, ok := c.byCallee[user]; ok {
		return s, true
	}
	return nil, false
}

func (c *CallCoordinator) removeLocked(s *domain.CallSession) {
	delete(c.byCaller, s.Caller)
	delete(c.byCallee, s.Callee)
}
