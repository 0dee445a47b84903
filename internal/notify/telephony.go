package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const telephonyAPI = "https://api.twilio.com"

// TelephonyClient sends SMS and places voice calls through the provider's
// REST API. Speech synthesis for calls happens provider-side from a <Say>
// document; this client only renders and posts it.
type TelephonyClient struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
}

type TelephonyOption func(*TelephonyClient)

func WithTelephonyHTTPClient(c *http.Client) TelephonyOption {
	return func(t *TelephonyClient) {
		t.httpClient = c
	}
}

// WithTelephonyBaseURL overrides the API host, for tests.
func WithTelephonyBaseURL(url string) TelephonyOption {
	return func(t *TelephonyClient) {
		t.baseURL = url
	}
}

func NewTelephonyClient(accountSID, authToken, from string, opts ...TelephonyOption) *TelephonyClient {
	t := &TelephonyClient{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    telephonyAPI,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Configured returns true if the account credentials and sender number are set.
func (t *TelephonyClient) Configured() bool {
	return t.accountSID != "" && t.authToken != "" && t.from != ""
}

// SendSMS sends one text message. One attempt, no retry.
func (t *TelephonyClient) SendSMS(ctx context.Context, to, body string) error {
	if !t.Configured() {
		return fmt.Errorf("telephony client not configured")
	}
	form := url.Values{
		"To":   {to},
		"From": {t.from},
		"Body": {body},
	}
	return t.post(ctx, "Messages.json", form)
}

// Call places a voice call that reads the message aloud.
func (t *TelephonyClient) Call(ctx context.Context, to, message string) error {
	if !t.Configured() {
		return fmt.Errorf("telephony client not configured")
	}
	form := url.Values{
		"To":    {to},
		"From":  {t.from},
		"Twiml": {SayDocument(message)},
	}
	return t.post(ctx, "Calls.json", form)
}

func (t *TelephonyClient) post(ctx context.Context, resource string, form url.Values) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/%s", t.baseURL, t.accountSID, resource)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("telephony API error: status %d", resp.StatusCode)
	}
	return nil
}

// SayDocument renders a voice-response document that speaks the message.
func SayDocument(message string) string {
	var b strings.Builder
	b.WriteString("<Response><Say>")
	xml.EscapeText(&b, []byte(message))
	b.WriteString("</Say></Response>")
	return b.String()
}

// MessageDocument renders a webhook reply document carrying an SMS body.
func MessageDocument(body string) string {
	var b strings.Builder
	b.WriteString("<Response><Message>")
	xml.EscapeText(&b, []byte(body))
	b.WriteString("</Message></Response>")
	return b.String()
}

// ValidSignature checks the provider's webhook signature: HMAC-SHA1 over
// the full request URL concatenated with the sorted form parameters,
// Base64-encoded, compared in constant time against the header value.
func ValidSignature(authToken, fullURL string, form url.Values, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		for _, v := range form[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
