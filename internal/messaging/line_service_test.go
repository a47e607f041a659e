package messaging

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/WarfarinBot/internal/line"
	"github.com/BTreeMap/WarfarinBot/internal/models"
)

const (
	testChannelSecret = "test-channel-secret"
	testLineUser      = "U4af4980629a0a3b8d1c2e3f405060708"
)

func lineSignature(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

const lineTextBody = `{
  "destination": "Uxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx",
  "events": [
    {
      "type": "message",
      "mode": "active",
      "timestamp": 1760866200000,
      "webhookEventId": "01FZ74A0TDDPYRVKNK77XKC3ZR",
      "deliveryContext": {"isRedelivery": false},
      "replyToken": "reply-token-1",
      "source": {"type": "user", "userId": "U4af4980629a0a3b8d1c2e3f405060708"},
      "message": {"id": "444573844083572737", "type": "text", "quoteToken": "q1", "text": "warfarin"}
    },
    {
      "type": "follow",
      "mode": "active",
      "timestamp": 1760866200000,
      "webhookEventId": "01FZ74A0TDDPYRVKNK77XKC3ZS",
      "deliveryContext": {"isRedelivery": false},
      "replyToken": "reply-token-2",
      "source": {"type": "user", "userId": "U4af4980629a0a3b8d1c2e3f405060708"},
      "follow": {"isUnblocked": false}
    }
  ]
}`

func postLine(t *testing.T, s *LineService, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set("X-Line-Signature", signature)
	rec := httptest.NewRecorder()
	s.CallbackHandler(rec, req)
	return rec
}

func TestLineService_CallbackQueuesTextMessages(t *testing.T) {
	s := NewLineService(line.NewMockClient(), testChannelSecret)
	defer s.Stop()

	rec := postLine(t, s, lineTextBody, lineSignature(testChannelSecret, lineTextBody))
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case evt := <-s.Events():
		assert.Equal(t, "444573844083572737", evt.MessageID)
		assert.Equal(t, testLineUser, evt.UserID)
		assert.Equal(t, "warfarin", evt.Text)
		assert.Equal(t, "reply-token-1", evt.ReplyHandle)
		assert.Equal(t, int64(1760866200), evt.Time)
	case <-time.After(time.Second):
		t.Fatal("expected an inbound event")
	}

	select {
	case evt := <-s.Events():
		t.Fatalf("follow event should be ignored, got %+v", evt)
	default:
	}
}

func TestLineService_CallbackRejectsBadSignature(t *testing.T) {
	s := NewLineService(line.NewMockClient(), testChannelSecret)
	defer s.Stop()

	rec := postLine(t, s, lineTextBody, lineSignature("wrong-secret", lineTextBody))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, s.Events(), 0)
}

func TestLineService_SendReply(t *testing.T) {
	client := line.NewMockClient()
	s := NewLineService(client, testChannelSecret)
	defer s.Stop()

	evt := models.NewInboundEvent("m1", testLineUser, "warfarin", "reply-token-1", time.Now())
	msgs := []models.OutboundMessage{models.TextMessage("hello")}
	require.NoError(t, s.SendReply(context.Background(), evt, msgs))

	require.Len(t, client.Replies, 1)
	assert.Equal(t, "reply-token-1", client.Replies[0].ReplyToken)
	assert.Equal(t, msgs, client.Replies[0].Messages)

	r := <-s.Receipts()
	assert.Equal(t, testLineUser, r.To)
	assert.Equal(t, TransportLine, r.Transport)
	assert.Equal(t, models.MessageStatusSent, r.Status)
}

func TestLineService_SendReplyAfterStop(t *testing.T) {
	s := NewLineService(line.NewMockClient(), testChannelSecret)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	err := s.SendReply(context.Background(), models.InboundEvent{ReplyHandle: "tok"}, []models.OutboundMessage{models.TextMessage("x")})
	assert.ErrorIs(t, err, ErrServiceStopped)
}

func TestLineService_ValidateRecipient(t *testing.T) {
	s := NewLineService(line.NewMockClient(), testChannelSecret)
	defer s.Stop()

	got, err := s.ValidateAndCanonicalizeRecipient(testLineUser)
	assert.NoError(t, err)
	assert.Equal(t, testLineUser, got)

	_, err = s.ValidateAndCanonicalizeRecipient("66812345678")
	assert.Error(t, err)
}
