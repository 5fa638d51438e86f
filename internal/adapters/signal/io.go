package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, sess *session) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(sess.id)).Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := sess.conn.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := sess.conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-sess.conn.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(sess.id)).Msg("writePump channel closed")
				return
			}
			if err := sess.conn.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := sess.conn.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, sess *session) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(sess.id)).Msg("readPump closing")
		ctl.Hub.Unregister(sess.id)
		sess.conn.Close()
		cancel()
	}()

	// Until authentication succeeds the connection only has the auth
	// window to live; after that the pong handler keeps it alive.
	_ = sess.conn.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.AuthTimeout))
	readWait := ctl.Cfg.PingPeriod + writeWait
	sess.conn.conn.SetPongHandler(func(string) error {
		return sess.conn.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(sess.id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := sess.conn.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("conn", string(sess.id)).Msg("readPump read error")
				return
			}
			authed := sess.authenticated()
			ctl.dispatch(ctx, sess, data)
			if !authed && sess.authenticated() {
				_ = sess.conn.conn.SetReadDeadline(time.Now().Add(readWait))
			}
		}
	}
}
