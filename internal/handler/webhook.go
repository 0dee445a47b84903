package handler

import (
	"log/slog"
	"net/http"

	"github.com/rowanhall/hearth/internal/notify"
)

// WebhookHandler answers inbound SMS from the telephony provider. A family
// member texts the household number and gets today's agenda back. Requests
// are authenticated by the provider's request signature, not the dashboard
// password.
type WebhookHandler struct {
	authToken string
	digest    *notify.Digest
	logger    *slog.Logger
}

func NewWebhookHandler(authToken string, digest *notify.Digest, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{authToken: authToken, digest: digest, logger: logger}
}

// SMS validates the provider signature and replies with a TwiML message
// document carrying today's agenda.
func (h *WebhookHandler) SMS(w http.ResponseWriter, r *http.Request) {
	if h.authToken == "" {
		writeErrorMsg(w, http.StatusServiceUnavailable, "telephony not configured")
		return
	}

	if err := r.ParseForm(); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid form")
		return
	}

	signature := r.Header.Get("X-Twilio-Signature")
	if !notify.ValidSignature(h.authToken, requestURL(r), r.PostForm, signature) {
		h.logger.Warn("invalid webhook signature", "remote", r.RemoteAddr)
		writeErrorMsg(w, http.StatusForbidden, "invalid signature")
		return
	}

	agenda, err := h.digest.Agenda(r.Context())
	if err != nil {
		h.logger.Error("compose agenda", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(notify.MessageDocument(agenda)))
}

// requestURL reconstructs the full URL the provider signed. The signature
// covers scheme and host, so honor the proxy's forwarded protocol.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
