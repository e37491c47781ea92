package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/contact"
	"github.com/fjod/storefront/internal/session"
)

type ProfileRequestDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	uid := sess.User().ID
	if uid == "" {
		handleError(w, domain.ErrAnonymous, "Please sign in.")
		return
	}

	p, err := s.Profiles.Load(r.Context(), uid)
	if err != nil {
		handleError(w, err, "Could not load profile.")
		return
	}
	respondOK(w, http.StatusOK, p, "")
}

// saveProfile writes the signed-in user's profile. Body fields fall back to
// the identity headers.
func (s *Server) saveProfile(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req ProfileRequestDTO
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", "Authentication failed.")
			return
		}
	}

	user := sess.User()
	if req.Name == "" {
		req.Name = user.Name
	}
	if req.Email == "" {
		req.Email = user.Email
	}

	p, err := s.Profiles.Ensure(r.Context(), user.ID, req.Name, req.Email)
	if err != nil {
		s.Logger.Warn("profile save failed", "user_id", user.ID, "err", err)
		handleError(w, err, "Authentication failed.")
		return
	}
	respondOK(w, http.StatusOK, p, fmt.Sprintf("Welcome back, %s!", p.Name))
}

func (s *Server) submitContact(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var form contact.Form
	if err := decodeJSON(r, &form); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", "Please fill all fields")
		return
	}

	id, err := s.Contact.Submit(r.Context(), sess.User().ID, form)
	switch {
	case errors.Is(err, domain.ErrValidation):
		handleError(w, err, "Please fill all fields")
		return
	case err != nil:
		s.Logger.Error("failed to store contact message", "session_id", sess.ID, "err", err)
		handleError(w, err, "Failed to send message. Try again.")
		return
	}

	respondOK(w, http.StatusCreated, map[string]string{"id": id}, "Message Sent! We'll contact you within 24h.")
}
