package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/BTreeMap/WarfarinBot/internal/models"
	"github.com/BTreeMap/WarfarinBot/internal/warfarin"
	"github.com/BTreeMap/WarfarinBot/internal/whatsapp"
)

func waMessage(id, from, text string, fromMe bool) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Sender:   types.NewJID(from, types.DefaultUserServer),
				IsFromMe: fromMe,
			},
			ID:        id,
			Timestamp: time.Unix(1760866200, 0),
		},
		Message: &waE2E.Message{Conversation: &text},
	}
}

func TestWhatsAppService_IncomingMessage(t *testing.T) {
	s := NewWhatsAppService(whatsapp.NewMockClient())
	defer s.Stop()
	require.NoError(t, s.Start(context.Background()))

	s.handleEvent(waMessage("ABC", "66812345678", "warfarin", false))
	evt := nextEvent(t, s.Events())
	assert.Equal(t, "ABC", evt.MessageID)
	assert.Equal(t, "66812345678", evt.UserID)
	assert.Equal(t, "warfarin", evt.Text)
	assert.Equal(t, int64(1760866200), evt.Time)

	s.handleEvent(waMessage("DEF", "66812345678", "echo", true))
	assert.Len(t, s.Events(), 0, "own messages are ignored")
}

func TestWhatsAppService_SendReplyAndMenu(t *testing.T) {
	client := whatsapp.NewMockClient()
	s := NewWhatsAppService(client)
	defer s.Stop()

	evt := models.NewInboundEvent("ABC", "66812345678", "no", "66812345678", time.Now())
	require.NoError(t, s.SendReply(context.Background(), evt, []models.OutboundMessage{models.MenuMessage(warfarin.SupplementMenu())}))
	require.Len(t, client.Sent(), 1)

	s.handleEvent(waMessage("GHI", "66812345678", "2", false))
	assert.Equal(t, warfarin.Catalog[1].Name, nextEvent(t, s.Events()).Text)

	r := <-s.Receipts()
	assert.Equal(t, TransportWhatsApp, r.Transport)
}

func TestWhatsAppService_Receipt(t *testing.T) {
	s := NewWhatsAppService(whatsapp.NewMockClient())
	defer s.Stop()

	s.handleEvent(&events.Receipt{
		MessageSource: types.MessageSource{Sender: types.NewJID("66812345678", types.DefaultUserServer)},
		Type:          events.ReceiptTypeRead,
		Timestamp:     time.Unix(1760866200, 0),
	})
	r := <-s.Receipts()
	assert.Equal(t, models.MessageStatusRead, r.Status)
	assert.Equal(t, "66812345678", r.To)
}
