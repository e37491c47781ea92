package httpapi

import (
	"net/http"
	"strings"

	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/internal/session"
)

const (
	headerSessionID = "X-Session-ID"
	headerUserID    = "X-User-ID"
	headerUserName  = "X-User-Name"
	headerUserEmail = "X-User-Email"
)

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// withSession resolves the session from X-Session-ID (falling back to the
// user id) and applies the identity carried by the request. A request without
// X-User-ID is anonymous.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimSpace(r.Header.Get(headerUserID))
		sid := strings.TrimSpace(r.Header.Get(headerSessionID))
		if sid == "" {
			sid = uid
		}
		if sid == "" {
			respondError(w, http.StatusBadRequest, "missing_session", "X-Session-ID or X-User-ID header is required", "Session expired. Please reload.")
			return
		}

		sess := s.Sessions.Get(sid)
		user := identity.User{
			ID:    uid,
			Name:  r.Header.Get(headerUserName),
			Email: r.Header.Get(headerUserEmail),
		}
		if err := sess.Authenticate(user); err != nil {
			s.Logger.Warn("dashboard sync unavailable", "session_id", sid, "user_id", uid, "err", err)
		}
		h(w, r, sess)
	}
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	sid := r.Header.Get(headerSessionID)
	if sid == "" {
		sid = r.Header.Get(headerUserID)
	}
	if sid != "" {
		s.Sessions.End(sid)
	}
	w.WriteHeader(http.StatusNoContent)
}
