package stub

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, 1<<16, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid email")
		return
	}
	if len(req.Password) < 8 {
		writeDetail(w, http.StatusUnprocessableEntity, "password too short")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[email]; exists {
		writeDetail(w, http.StatusBadRequest, "email_already_registered")
		return
	}

	u := &user{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  req.Password,
		CreatedAt: s.now(),
	}
	s.users[email] = u
	s.byID[u.ID] = u

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         u.ID,
		"email":      u.Email,
		"created_at": u.CreatedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	// OAuth2 password flow: form-encoded, username carries the email.
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form body")
		return
	}
	email := normalizeEmail(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	s.mu.Lock()
	u, ok := s.users[email]
	s.mu.Unlock()

	if !ok || u.Password != password {
		writeDetail(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	s.writeTokenPair(w, u)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, 1<<16, &req); err != nil || req.RefreshToken == "" {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := s.verifyToken(req.RefreshToken, "refresh")
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	s.mu.Lock()
	u, ok := s.byID[userID]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	s.writeTokenPair(w, u)
}

func (s *Server) writeTokenPair(w http.ResponseWriter, u *user) {
	access, err := s.issueToken(u.ID, u.Email, "access", s.cfg.AccessTTL)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	refresh, err := s.issueToken(u.ID, u.Email, "refresh", s.cfg.RefreshTTL)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "token issue failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.cfg.AccessTTL.Seconds()),
	})
}
