package signal

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/domain"
)

func (ctl *Controller) handleCallInitiate(sess *session, data []byte) {
	var p callInitiatePayload
	if !ctl.bind(sess.conn, data, &p) {
		return
	}
	err := ctl.Hub.InitiateCall(sess.user, domain.UserID(p.CalleeID), domain.CallKind(p.Kind), p.Offer)
	if errors.Is(err, app.ErrAlreadyInCall) {
		ctl.sendError(sess.conn, "already_in_call")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("callee", p.CalleeID).Msg("call initiate")
		ctl.sendError(sess.conn, "call_failed")
	}
}

func (ctl *Controller) handleCallAnswer(sess *session, data []byte) {
	var p callAnswerPayload
	if !ctl.bind(sess.conn, data, &p) {
		return
	}
	if err := ctl.Hub.AnswerCall(sess.user, p.Answer); errors.Is(err, app.ErrNoActiveCall) {
		ctl.sendError(sess.conn, "no_active_call")
	}
}

func (ctl *Controller) handleCallCandidate(sess *session, data []byte) {
	var p callCandidatePayload
	if !ctl.bind(sess.conn, data, &p) {
		return
	}
	ctl.Hub.RelayCandidate(sess.user, p.Candidate)
}

func (ctl *Controller) handleCallReject(sess *session) {
	if err := ctl.Hub.RejectCall(sess.user); errors.Is(err, app.ErrNoActiveCall) {
		ctl.sendError(sess.conn, "no_active_call")
	}
}

func (ctl *Controller) handleCallEnd(sess *session) {
	// Ending a non-existent call is a no-op.
	ctl.Hub.EndCall(sess.user)
}
