// Package testutil provides common test utilities and helpers for WarfarinBot tests.
package testutil

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"testing"
	"time"

	"github.com/BTreeMap/WarfarinBot/internal/api"
	"github.com/BTreeMap/WarfarinBot/internal/flow"
	"github.com/BTreeMap/WarfarinBot/internal/line"
	"github.com/BTreeMap/WarfarinBot/internal/messaging"
	"github.com/BTreeMap/WarfarinBot/internal/store"
	"github.com/BTreeMap/WarfarinBot/internal/twiliowhatsapp"
)

// Test credentials used by Env.
const (
	LineChannelSecret = "test-channel-secret"
	TwilioAuthToken   = "test-auth-token"
	TwilioWebhookURL  = "https://bot.example.com/twilio/webhook"
)

// Env is an API server backed by in-memory stores and mock transports.
type Env struct {
	Server       *api.Server
	Store        *store.InMemoryStore
	Sessions     *store.InMemorySessionStore
	Line         *messaging.LineService
	LineClient   *line.MockClient
	Twilio       *messaging.TwilioService
	TwilioClient *twiliowhatsapp.MockClient
}

// NewTestServer creates a test API server with in-memory dependencies. The LINE service checks
// signatures against LineChannelSecret and the Twilio service against TwilioAuthToken.
func NewTestServer(t *testing.T, opts ...api.Option) *Env {
	t.Helper()
	env := &Env{
		Store:        store.NewInMemoryStore(),
		Sessions:     store.NewInMemorySessionStore(),
		LineClient:   line.NewMockClient(),
		TwilioClient: twiliowhatsapp.NewMockClient(),
	}
	env.Line = messaging.NewLineService(env.LineClient, LineChannelSecret)
	env.Twilio = messaging.NewTwilioService(env.TwilioClient,
		messaging.WithSignatureValidation(twiliowhatsapp.NewSignatureValidator(TwilioAuthToken), TwilioWebhookURL))
	t.Cleanup(func() {
		env.Line.Stop()
		env.Twilio.Stop()
	})

	dialogue := flow.NewWarfarinFlow(env.Sessions)
	env.Server = api.NewServer(env.Store, dialogue, []messaging.Service{env.Line, env.Twilio}, opts...)
	return env
}

// StartPipeline runs a response handler per service until the test ends, so webhook deliveries
// are answered the way Server.Run answers them.
func (e *Env) StartPipeline(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	dialogue := flow.NewWarfarinFlow(e.Sessions)
	for _, svc := range []messaging.Service{e.Line, e.Twilio} {
		messaging.NewResponseHandler(svc, dialogue, e.Store).Start(ctx)
		messaging.RecordReceipts(ctx, svc, e.Store)
	}
}

// SignLineBody computes the X-Line-Signature for body.
func SignLineBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignTwilioRequest computes the X-Twilio-Signature for a form POST to webhookURL.
func SignTwilioRequest(authToken, webhookURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	data := webhookURL
	for _, k := range keys {
		data += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// LineTextEventBody builds a LINE webhook body carrying one text message from userID.
func LineTextEventBody(t *testing.T, messageID, userID, replyToken, text string) []byte {
	t.Helper()
	body := map[string]interface{}{
		"destination": "U00000000000000000000000000000000",
		"events": []map[string]interface{}{{
			"type":            "message",
			"mode":            "active",
			"timestamp":       time.Now().UnixMilli(),
			"webhookEventId":  "evt-" + messageID,
			"deliveryContext": map[string]bool{"isRedelivery": false},
			"replyToken":      replyToken,
			"source":          map[string]string{"type": "user", "userId": userID},
			"message":         map[string]string{"id": messageID, "type": "text", "quoteToken": "q-" + messageID, "text": text},
		}},
	}
	return MustMarshalJSON(t, body)
}

// PostLine delivers a signed LINE webhook body to h.
func PostLine(t *testing.T, h http.Handler, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := CreateHTTPRequest(t, http.MethodPost, "/callback", body)
	req.Header.Set("X-Line-Signature", SignLineBody(LineChannelSecret, body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// PostTwilio delivers a signed Twilio webhook form to h.
func PostTwilio(t *testing.T, h http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := CreateHTTPRequest(t, http.MethodPost, "/twilio/webhook", []byte(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(twiliowhatsapp.SignatureHeader, SignTwilioRequest(TwilioAuthToken, TwilioWebhookURL, form))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with a raw body for testing.
func CreateHTTPRequest(t *testing.T, method, target string, body []byte) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, format string, args ...interface{}) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out: %s", fmt.Sprintf(format, args...))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}
