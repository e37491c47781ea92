package httpapi

import (
	"net/http"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/session"
	"github.com/gorilla/websocket"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if sess.User().Anonymous() {
		handleError(w, domain.ErrAnonymous, "Please sign in to view your dashboard.")
		return
	}
	respondOK(w, http.StatusOK, sess.Dashboard.ReadModel(), "")
}

// liveDashboard streams the session's read-model over a websocket: the
// current model first, then the latest one after every change.
func (s *Server) liveDashboard(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if sess.User().Anonymous() {
		handleError(w, domain.ErrAnonymous, "Please sign in to view your dashboard.")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("websocket upgrade failed", "session_id", sess.ID, "err", err)
		return
	}
	defer conn.Close()

	models, cancel := sess.Dashboard.Watch()
	defer cancel()

	// The client sends nothing; reading only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()

	for {
		select {
		case model := <-models:
			conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteJSON(model); err != nil {
				s.Logger.Debug("live dashboard write failed", "session_id", sess.ID, "err", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
