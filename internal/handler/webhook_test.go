package handler

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rowanhall/hearth/internal/calendar"
	"github.com/rowanhall/hearth/internal/kv"
	"github.com/rowanhall/hearth/internal/ledger"
	"github.com/rowanhall/hearth/internal/notify"
)

// signForm reproduces the provider's request signature: the full URL
// followed by each form key and value in sorted key order.
func signForm(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func setupWebhook(t *testing.T) *WebhookHandler {
	t.Helper()
	store, err := kv.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.DiscardHandler)
	l := ledger.New(store, logger)
	cal := calendar.New(store, logger)
	digest := notify.NewDigest(l, cal, nil, store, 7, time.UTC, logger)
	return NewWebhookHandler("auth-token", digest, logger)
}

func postSMS(h *WebhookHandler, form url.Values, signature string) *httptest.ResponseRecorder {
	r := httptest.NewRequest("POST", "http://hearth.local/webhooks/sms", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		r.Header.Set("X-Twilio-Signature", signature)
	}
	w := httptest.NewRecorder()
	h.SMS(w, r)
	return w
}

func TestSMSValidSignature(t *testing.T) {
	h := setupWebhook(t)

	form := url.Values{"From": {"+15550100"}, "Body": {"agenda"}}
	sig := signForm("auth-token", "http://hearth.local/webhooks/sms", form)

	w := postSMS(h, form, sig)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/xml" {
		t.Errorf("content type = %q, want text/xml", ct)
	}
	if !strings.Contains(w.Body.String(), "<Response><Message>") {
		t.Errorf("body = %q, want TwiML message document", w.Body.String())
	}
}

func TestSMSInvalidSignature(t *testing.T) {
	h := setupWebhook(t)

	form := url.Values{"From": {"+15550100"}, "Body": {"agenda"}}
	w := postSMS(h, form, "bogus")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestSMSMissingSignature(t *testing.T) {
	h := setupWebhook(t)

	w := postSMS(h, url.Values{"Body": {"agenda"}}, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestSMSUnconfigured(t *testing.T) {
	h := setupWebhook(t)
	h.authToken = ""

	w := postSMS(h, url.Values{"Body": {"agenda"}}, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestSMSHonorsForwardedProto(t *testing.T) {
	h := setupWebhook(t)

	form := url.Values{"Body": {"agenda"}}
	sig := signForm("auth-token", "https://hearth.example.com/webhooks/sms", form)

	r := httptest.NewRequest("POST", "http://hearth.example.com/webhooks/sms", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("X-Twilio-Signature", sig)

	w := httptest.NewRecorder()
	h.SMS(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
}
