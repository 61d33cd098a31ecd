package handlers

import (
	"net/http"

	"github.com/abrezinsky/electionvote/internal/auth"
)

// handleLogin exchanges the admin password for a session cookie
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.error(w, r, err)
		return
	}

	token, ok := h.Auth.Login(req.Password)
	if !ok {
		h.Log.Warn("Admin login failed", "remote", r.RemoteAddr)
		h.error(w, r, Unauthorized("Invalid password"))
		return
	}

	auth.SetSessionCookie(w, token)
	respondMessage(w, "Logged in", nil)
}

// handleLogout revokes the session and clears the cookie
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		h.Auth.Logout(cookie.Value)
	}

	auth.ClearSessionCookie(w)
	respondMessage(w, "Logged out", nil)
}
