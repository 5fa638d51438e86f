package signal

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

func (ctl *Controller) handleJoinConversation(ctx context.Context, sess *session, data []byte) {
	var p conversationPayload
	if !ctl.bind(sess.conn, data, &p) {
		return
	}
	conv := domain.ConversationID(p.ConversationID)
	err := ctl.Hub.JoinConversation(ctx, sess.user, sess.id, conv)
	if errors.Is(err, app.ErrNotAMember) {
		ctl.sendError(sess.conn, "not_a_member")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conversation", p.ConversationID).Msg("join conversation")
		ctl.sendError(sess.conn, "join_failed")
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(sess.id)).Str("conversation", p.ConversationID).Msg("joined conversation")
	ctl.sendJSON(sess.conn, struct {
		Type           string `json:"type"`
		ConversationID string `json:"conversation_id"`
	}{Type: "conversation-joined", ConversationID: p.ConversationID})
}

func (ctl *Controller) handleLeaveConversation(sess *session, data []byte) {
	var p conversationPayload
	if !ctl.bind(sess.conn, data, &p) {
		return
	}
	ctl.Hub.LeaveConversation(sess.id, domain.ConversationID(p.ConversationID))
	ctl.sendJSON(sess.conn, struct {
		Type           string `json:"type"`
		ConversationID string `json:"conversation_id"`
	}{Type: "conversation-left", ConversationID: p.ConversationID})
}

func (ctl *Controller) handleTyping(sess *session, data []byte) {
	var p typingPayload
	if !ctl.bind(sess.conn, data, &p) {
		return
	}
	ctl.Hub.Typing(sess.user, sess.id, domain.ConversationID(p.ConversationID), p.Typing)
}

func (ctl *Controller) handleMarkRead(ctx context.Context, sess *session, data []byte) {
	var p markReadPayload
	if !ctl.bind(sess.conn, data, &p) {
		return
	}
	err := ctl.Hub.MarkRead(ctx, domain.MessageID(p.MessageID), sess.user)
	switch {
	case errors.Is(err, app.ErrNotAMember):
		ctl.sendError(sess.conn, "not_a_member")
	case errors.Is(err, core.ErrMessageNotFound):
		ctl.sendError(sess.conn, "message_not_found")
	case err != nil:
		log.Error().Err(err).Str("module", "signal").Str("message", p.MessageID).Msg("mark read")
		ctl.sendError(sess.conn, "mark_read_failed")
	}
}

func (ctl *Controller) handleWhoIsOnline(sess *session, data []byte) {
	var p whoIsOnlinePayload
	if !ctl.bind(sess.conn, data, &p) {
		return
	}
	ids := lo.Map(p.UserIDs, func(id string, _ int) domain.UserID { return domain.UserID(id) })
	ctl.sendJSON(sess.conn, struct {
		Type   string                 `json:"type"`
		Online map[domain.UserID]bool `json:"online"`
	}{Type: EvtOnline, Online: ctl.Hub.Online(ids)})
}
