package messaging

import (
	"context"
	"log/slog"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/BTreeMap/WarfarinBot/internal/models"
	"github.com/BTreeMap/WarfarinBot/internal/whatsapp"
)

// TransportWhatsApp names the whatsmeow transport.
const TransportWhatsApp = "whatsapp"

// WhatsAppService implements Service using the whatsmeow-based whatsapp client.
type WhatsAppService struct {
	*eventBus
	client    whatsapp.WhatsAppSender
	waClient  *whatsapp.Client
	handlerID uint32
	menus     *menuMemory
}

// NewWhatsAppService creates a WhatsAppService wrapping the given WhatsAppSender. Inbound events
// are only available when client is a *whatsapp.Client.
func NewWhatsAppService(client whatsapp.WhatsAppSender) *WhatsAppService {
	s := &WhatsAppService{
		eventBus: newEventBus(TransportWhatsApp),
		client:   client,
		menus:    newMenuMemory(),
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		s.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with send-only client")
	}
	return s
}

// ValidateAndCanonicalizeRecipient reduces a phone number to its digits.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// Start registers the whatsmeow event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling")
		return nil
	}
	s.handlerID = s.waClient.AddEventHandler(s.handleEvent)
	slog.Debug("WhatsAppService event handler registered", "id", s.handlerID)
	return nil
}

// Stop unregisters the event handler and closes the channels.
func (s *WhatsAppService) Stop() error {
	if s.waClient != nil && s.handlerID != 0 {
		s.waClient.RemoveEventHandler(s.handlerID)
	}
	s.stop()
	return nil
}

// SendReply sends each message as its own text.
func (s *WhatsAppService) SendReply(ctx context.Context, evt models.InboundEvent, msgs []models.OutboundMessage) error {
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
			slog.Error("WhatsAppService SendReply failed", "error", err, "to", to)
			s.emitReceipt(to, models.MessageStatusFailed, time.Now())
			return err
		}
		s.emitReceipt(to, models.MessageStatusSent, time.Now())
	}
	return nil
}

func (s *WhatsAppService) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		s.handleIncomingMessage(v)
	case *events.Receipt:
		s.handleMessageReceipt(v)
	}
}

// handleIncomingMessage queues direct text messages; group chats, own messages and media are
// ignored.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}

	var text string
	switch {
	case evt.Message.Conversation != nil:
		text = evt.Message.GetConversation()
	case evt.Message.ExtendedTextMessage != nil:
		text = evt.Message.GetExtendedTextMessage().GetText()
	}
	if text == "" {
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	user := evt.Info.Sender.User
	s.emitEvent(models.NewInboundEvent(string(evt.Info.ID), user, s.menus.resolve(user, text), user, evt.Info.Timestamp))
}

// handleMessageReceipt forwards delivered and read receipts.
func (s *WhatsAppService) handleMessageReceipt(evt *events.Receipt) {
	var status models.MessageStatus
	switch evt.Type {
	case events.ReceiptTypeDelivered:
		status = models.MessageStatusDelivered
	case events.ReceiptTypeRead:
		status = models.MessageStatusRead
	default:
		return
	}
	s.emitReceipt(evt.MessageSource.Sender.User, status, evt.Timestamp)
}
