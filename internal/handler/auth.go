package handler

import (
	"log/slog"
	"net/http"

	"github.com/rowanhall/hearth/internal/auth"
)

// AuthHandler gates the dashboard behind the shared household password.
type AuthHandler struct {
	secret string
	logger *slog.Logger
}

func NewAuthHandler(secret string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{secret: secret, logger: logger}
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login checks the submitted password and sets the auth cookie. Failures
// are logged with the client address so repeated guessing is visible.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if !auth.Equal(req.Password, h.secret) {
		h.logger.Warn("failed login", "remote", r.RemoteAddr)
		writeErrorMsg(w, http.StatusUnauthorized, "incorrect password")
		return
	}

	auth.SetCookie(w, h.secret)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Logout clears the auth cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Session reports whether the request carries a valid credential. The
// dashboard calls this on load to decide whether to show the login gate.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": auth.IsAuthorized(r, h.secret)})
}
