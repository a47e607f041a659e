package twiliowhatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"sort"
	"testing"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	err := mock.SendMessage(ctx, "66812345678", "Hello Test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	if sent[0].Body != "Hello Test" {
		t.Errorf("expected body %q, got %q", "Hello Test", sent[0].Body)
	}
}

func TestMockClient_Error(t *testing.T) {
	mock := NewMockClient()
	mock.Err = errors.New("boom")
	if err := mock.SendMessage(context.Background(), "1", "x"); err == nil {
		t.Fatal("expected error")
	}
	if len(mock.Sent()) != 0 {
		t.Errorf("expected nothing recorded")
	}
}

func TestNewClient_MissingCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok")); err == nil {
		t.Fatal("expected error without from number")
	}
}

// sign computes a Twilio webhook signature: base64(HMAC-SHA1(url + sorted key/value pairs)).
func sign(token, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	data := url
	for _, k := range keys {
		data += k + params[k]
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSignatureValidator(t *testing.T) {
	url := "https://bot.example.com/twilio/webhook"
	params := map[string]string{"From": "whatsapp:+66812345678", "Body": "warfarin", "MessageSid": "SM1"}
	v := NewSignatureValidator("secret")

	if !v.Validate(url, params, sign("secret", url, params)) {
		t.Error("expected valid signature")
	}
	if v.Validate(url, params, sign("other", url, params)) {
		t.Error("expected signature with wrong token to fail")
	}
	if v.Validate(url, params, "") {
		t.Error("expected empty signature to fail")
	}
}
