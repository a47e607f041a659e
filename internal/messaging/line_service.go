package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/BTreeMap/WarfarinBot/internal/line"
	"github.com/BTreeMap/WarfarinBot/internal/models"
)

// TransportLine names the LINE transport.
const TransportLine = "line"

var lineUserIDRegex = regexp.MustCompile(`^U[0-9a-f]{32}$`)

// LineService implements Service over the LINE Messaging API. Inbound messages arrive through
// CallbackHandler; replies use the event's reply token.
type LineService struct {
	*eventBus
	client        line.LineSender
	channelSecret string
}

// NewLineService creates a LineService. channelSecret verifies the x-line-signature header.
func NewLineService(client line.LineSender, channelSecret string) *LineService {
	return &LineService{
		eventBus:      newEventBus(TransportLine),
		client:        client,
		channelSecret: channelSecret,
	}
}

// ValidateAndCanonicalizeRecipient accepts LINE user ids ("U" followed by 32 hex digits).
func (s *LineService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	if !lineUserIDRegex.MatchString(recipient) {
		return "", fmt.Errorf("invalid LINE user id %q", recipient)
	}
	return recipient, nil
}

// Start is a no-op; LINE pushes events to the webhook.
func (s *LineService) Start(ctx context.Context) error {
	return nil
}

func (s *LineService) Stop() error {
	s.stop()
	return nil
}

// SendReply answers evt with msgs in a single reply call.
func (s *LineService) SendReply(ctx context.Context, evt models.InboundEvent, msgs []models.OutboundMessage) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	if err := s.client.Reply(ctx, evt.ReplyHandle, msgs); err != nil {
		slog.Error("LineService SendReply failed", "error", err, "userID", evt.UserID)
		s.emitReceipt(evt.UserID, models.MessageStatusFailed, time.Now())
		return err
	}
	s.emitReceipt(evt.UserID, models.MessageStatusSent, time.Now())
	return nil
}

// CallbackHandler handles LINE webhook deliveries. Requests with a bad signature get 400; text
// messages from users are queued on Events() and everything else is ignored.
func (s *LineService) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	cb, err := webhook.ParseRequest(s.channelSecret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			slog.Warn("LINE webhook signature rejected", "remote", r.RemoteAddr)
			http.Error(w, "Invalid signature", http.StatusBadRequest)
			return
		}
		slog.Error("Failed to parse LINE webhook", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	queued := 0
	for _, event := range cb.Events {
		evt, ok := lineTextEvent(event)
		if !ok {
			continue
		}
		if s.emitEvent(evt) {
			queued++
		}
	}
	slog.Debug("LINE webhook processed", "events", len(cb.Events), "queued", queued)

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// lineTextEvent extracts a text message sent by a user from a webhook event.
func lineTextEvent(event webhook.EventInterface) (models.InboundEvent, bool) {
	e, ok := event.(webhook.MessageEvent)
	if !ok {
		slog.Debug("LINE ignoring non-message event", "type", fmt.Sprintf("%T", event))
		return models.InboundEvent{}, false
	}
	msg, ok := e.Message.(webhook.TextMessageContent)
	if !ok {
		slog.Debug("LINE ignoring non-text message", "type", fmt.Sprintf("%T", e.Message))
		return models.InboundEvent{}, false
	}
	src, ok := e.Source.(webhook.UserSource)
	if !ok || src.UserId == "" {
		slog.Debug("LINE ignoring message without user source", "type", fmt.Sprintf("%T", e.Source))
		return models.InboundEvent{}, false
	}

	at := time.Now()
	if e.Timestamp > 0 {
		at = time.UnixMilli(e.Timestamp)
	}
	return models.NewInboundEvent(msg.Id, src.UserId, msg.Text, e.ReplyToken, at), true
}
