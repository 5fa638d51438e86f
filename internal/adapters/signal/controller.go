package signal

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/config"
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller is the connection gatekeeper and event dispatcher. A fresh
// connection is admitted into the hub only after its first event
// authenticates within the configured window; everything before that
// creates no state.
type Controller struct {
	Hub     *app.Hub
	Cfg     *config.Config
	limiter *EventRateLimiter
}

func NewController(hub *app.Hub, cfg *config.Config) *Controller {
	return &Controller{
		Hub:     hub,
		Cfg:     cfg,
		limiter: NewEventRateLimiter(cfg.EventRateLimit, cfg.EventRateWindow),
	}
}

// session is the per-connection state owned by the read pump.
type session struct {
	id   core.ConnectionID
	user domain.UserID
	conn *wsConn
}

func (s *session) authenticated() bool { return s.user != "" }

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	sess := &session{
		id:   core.ConnectionID(uuid.NewString()),
		conn: newWSConn(ws, ctl.Cfg.SendBuffer),
	}
	log.Info().Str("module", "signal").Str("conn", string(sess.id)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, sess)
	go ctl.readPump(ctx, cancel, sess)
}

func (ctl *Controller) dispatch(ctx context.Context, sess *session, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(sess.conn, "bad_payload")
		return
	}

	if !sess.authenticated() {
		if env.Type != EvtAuthenticate {
			ctl.sendError(sess.conn, "not_authenticated")
			return
		}
		ctl.handleAuthenticate(ctx, sess, data)
		return
	}

	if env.Type != EvtPing && !ctl.limiter.Allow(sess.user) {
		ctl.sendError(sess.conn, "rate_limited")
		return
	}

	switch env.Type {
	case EvtAuthenticate:
		// Re-authenticating an admitted connection is a no-op.
	case EvtJoinConversation:
		ctl.handleJoinConversation(ctx, sess, data)
	case EvtLeaveConversation:
		ctl.handleLeaveConversation(sess, data)
	case EvtTyping:
		ctl.handleTyping(sess, data)
	case EvtMarkRead:
		ctl.handleMarkRead(ctx, sess, data)
	case EvtWhoIsOnline:
		ctl.handleWhoIsOnline(sess, data)
	case EvtPing:
		ctl.sendJSON(sess.conn, struct {
			Type string `json:"type"`
		}{Type: EvtPong})
	case EvtCallInitiate:
		ctl.handleCallInitiate(sess, data)
	case EvtCallAnswer:
		ctl.handleCallAnswer(sess, data)
	case EvtCallCandidate:
		ctl.handleCallCandidate(sess, data)
	case EvtCallReject:
		ctl.handleCallReject(sess)
	case EvtCallEnd:
		ctl.handleCallEnd(sess)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
		ctl.sendError(sess.conn, "unknown_event")
	}
}

func (ctl *Controller) handleAuthenticate(ctx context.Context, sess *session, data []byte) {
	var p authenticatePayload
	if !ctl.bind(sess.conn, data, &p) {
		return
	}
	user, err := ctl.Hub.Authenticate(ctx, p.Token)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(sess.id)).Msg("authentication rejected")
		ctl.sendError(sess.conn, "authentication_failed")
		sess.conn.Close()
		return
	}
	sess.user = user
	ctl.Hub.Register(user, sess.id, sess.conn)
	log.Info().Str("module", "signal").Str("conn", string(sess.id)).Str("user", string(user)).Msg("authenticated")
	ctl.sendJSON(sess.conn, struct {
		Type   string        `json:"type"`
		UserID domain.UserID `json:"user_id"`
	}{Type: EvtAuthenticated, UserID: user})
}

// bind unmarshals and validates an inbound payload, reporting a
// bad_payload error frame on failure.
func (ctl *Controller) bind(conn *wsConn, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad payload")
		ctl.sendError(conn, "bad_payload")
		return false
	}
	if err := validate.Struct(v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("invalid payload")
		ctl.sendError(conn, "bad_payload")
		return false
	}
	return true
}

func (ctl *Controller) sendJSON(conn *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = conn.TrySend(b)
}

func (ctl *Controller) sendError(conn *wsConn, reason string) {
	ctl.sendJSON(conn, struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}{Type: EvtError, Error: reason})
}
