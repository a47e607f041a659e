package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/WarfarinBot/internal/models"
	"github.com/BTreeMap/WarfarinBot/internal/twiliowhatsapp"
)

// TransportTwilio names the Twilio WhatsApp transport.
const TransportTwilio = "twilio"

// emptyTwiML acknowledges a webhook without sending a synchronous reply.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// TwilioService implements Service using the Twilio WhatsApp API. Menus are sent as numbered
// lists and a numeric answer is translated back to the chosen option.
type TwilioService struct {
	*eventBus
	client     twiliowhatsapp.TwilioWhatsAppSender
	validator  *twiliowhatsapp.SignatureValidator
	webhookURL string
	menus      *menuMemory
}

// TwilioOption configures a TwilioService.
type TwilioOption func(*TwilioService)

// WithSignatureValidation rejects webhooks whose X-Twilio-Signature does not match webhookURL
// and the posted form.
func WithSignatureValidation(v *twiliowhatsapp.SignatureValidator, webhookURL string) TwilioOption {
	return func(s *TwilioService) {
		s.validator = v
		s.webhookURL = webhookURL
	}
}

// NewTwilioService creates a TwilioService around client.
func NewTwilioService(client twiliowhatsapp.TwilioWhatsAppSender, opts ...TwilioOption) *TwilioService {
	s := &TwilioService{
		eventBus: newEventBus(TransportTwilio),
		client:   client,
		menus:    newMenuMemory(),
	}
	for _, opt := range opts {
		opt(s)
	}
	slog.Debug("TwilioService created", "signature_validation", s.validator != nil)
	return s
}

// ValidateAndCanonicalizeRecipient reduces a WhatsApp address to its digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// Start is a no-op; Twilio pushes events to the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

func (s *TwilioService) Stop() error {
	s.stop()
	return nil
}

// SendReply sends each message as its own WhatsApp text.
func (s *TwilioService) SendReply(ctx context.Context, evt models.InboundEvent, msgs []models.OutboundMessage) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	if len(msgs) == 0 {
		return models.ErrEmptyMessages
	}
	to, err := s.ValidateAndCanonicalizeRecipient(evt.ReplyHandle)
	if err != nil {
		return err
	}

	// Remembered before sending: the user may answer before the last message returns.
	s.menus.remember(to, msgs)
	for _, msg := range msgs {
		if err := s.client.SendMessage(ctx, to, RenderText(msg)); err != nil {
			slog.Error("TwilioService SendReply failed", "error", err, "to", to)
			s.emitReceipt(to, models.MessageStatusFailed, time.Now())
			return err
		}
		s.emitReceipt(to, models.MessageStatusSent, time.Now())
	}
	return nil
}

// TwilioWebhookHandler handles inbound Twilio webhook requests.
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if s.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		if !s.validator.Validate(s.webhookURL, params, r.Header.Get(twiliowhatsapp.SignatureHeader)) {
			slog.Warn("Twilio webhook signature rejected", "remote", r.RemoteAddr)
			http.Error(w, "Invalid signature", http.StatusForbidden)
			return
		}
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	if from == "" || body == "" {
		slog.Warn("Twilio webhook missing fields", "from_set", from != "", "body_set", body != "")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	user, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Warn("Twilio webhook invalid sender", "error", err)
		http.Error(w, "Invalid sender", http.StatusBadRequest)
		return
	}

	text := s.menus.resolve(user, body)
	slog.Info("Inbound WhatsApp message from Twilio", "from", user, "body_length", len(body))
	s.emitEvent(models.NewInboundEvent(r.FormValue("MessageSid"), user, text, user, time.Now()))

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, emptyTwiML)
}
