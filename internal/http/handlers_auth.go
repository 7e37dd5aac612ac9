package http

import (
	"net/http"
)

type credentialsResponse struct {
	UserID string `json:"user_id"`
}

func (s *Server) readCredentials(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeBadRequest(w, r, "invalid request body")
		return "", "", false
	}
	// Secrets are not sanitized; they are compared byte for byte.
	secret := ""
	if p.IsJSON() {
		secret, _ = p.jsonData["secret"].(string)
	} else {
		secret = p.formData.Get("secret")
	}
	return p.Get("identifier"), secret, true
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	id, secret, ok := s.readCredentials(w, r)
	if !ok {
		return
	}
	userID, err := s.auth.SignUp(r.Context(), id, secret)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, credentialsResponse{UserID: userID})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	id, secret, ok := s.readCredentials(w, r)
	if !ok {
		return
	}
	userID, err := s.auth.SignIn(r.Context(), id, secret)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, credentialsResponse{UserID: userID})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
