package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/BTreeMap/WarfarinBot/internal/flow"
	"github.com/BTreeMap/WarfarinBot/internal/models"
	"github.com/BTreeMap/WarfarinBot/internal/store"
)

// DefaultApology is sent when the dialogue cannot process a message.
const DefaultApology = flow.ErrorPromptInternal

// ResponseHandler feeds inbound events from one Service through the dialogue and sends the
// replies back on the same Service.
type ResponseHandler struct {
	msgService Service
	dialogue   flow.Handler
	dedup      store.DedupRepo
	apology    string
}

// NewResponseHandler creates a ResponseHandler. dedup may be nil to disable redelivery checks.
func NewResponseHandler(msgService Service, dialogue flow.Handler, dedup store.DedupRepo) *ResponseHandler {
	return &ResponseHandler{
		msgService: msgService,
		dialogue:   dialogue,
		dedup:      dedup,
		apology:    DefaultApology,
	}
}

// ProcessEvent handles one inbound event. Redelivered message ids are acknowledged without a
// second reply.
func (rh *ResponseHandler) ProcessEvent(ctx context.Context, evt models.InboundEvent) error {
	if evt.UserID == "" {
		return models.ErrEmptyUserID
	}
	if evt.MessageID == "" {
		evt.MessageID = ulid.Make().String()
	}
	log := slog.With("transport", rh.msgService.Name(), "userID", evt.UserID, "messageID", evt.MessageID)

	if rh.dedup != nil {
		fresh, err := rh.dedup.RecordInbound(evt.MessageID, evt.UserID)
		if err != nil {
			log.Warn("ResponseHandler dedup check failed, processing anyway", "error", err)
		} else if !fresh {
			log.Info("ResponseHandler skipping duplicate message")
			return nil
		}
	}

	msgs, handleErr := rh.reply(ctx, evt)
	if err := rh.msgService.SendReply(ctx, evt, msgs); err != nil {
		log.Error("ResponseHandler failed to send reply", "error", err)
		return errors.Join(handleErr, fmt.Errorf("send reply: %w", err))
	}

	if rh.dedup != nil {
		if err := rh.dedup.MarkProcessed(evt.MessageID); err != nil {
			log.Warn("ResponseHandler failed to mark message processed", "error", err)
		}
	}
	return handleErr
}

func (rh *ResponseHandler) reply(ctx context.Context, evt models.InboundEvent) ([]models.OutboundMessage, error) {
	res, err := rh.dialogue.HandleMessage(ctx, evt.UserID, evt.Text)
	if err != nil {
		slog.Error("ResponseHandler dialogue failed", "error", err, "userID", evt.UserID)
		return []models.OutboundMessage{models.TextMessage(rh.apology)}, fmt.Errorf("dialogue: %w", err)
	}
	if len(res.Messages) == 0 {
		return []models.OutboundMessage{models.TextMessage(rh.apology)}, fmt.Errorf("dialogue produced no reply")
	}
	return res.Messages, nil
}

// Start processes events until the channel closes or ctx is done. Events are handled one at a
// time so a user's messages keep their order.
func (rh *ResponseHandler) Start(ctx context.Context) {
	slog.Info("ResponseHandler starting", "transport", rh.msgService.Name())
	go func() {
		defer slog.Info("ResponseHandler stopped", "transport", rh.msgService.Name())
		for {
			select {
			case evt, ok := <-rh.msgService.Events():
				if !ok {
					return
				}
				if err := rh.ProcessEvent(ctx, evt); err != nil {
					slog.Error("ResponseHandler failed to process event", "error", err, "userID", evt.UserID)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ReceiptSink persists receipts.
type ReceiptSink interface {
	AddReceipt(r models.Receipt) error
}

// RecordReceipts drains the service's receipts into sink until the channel closes or ctx is done.
func RecordReceipts(ctx context.Context, msgService Service, sink ReceiptSink) {
	go func() {
		for {
			select {
			case r, ok := <-msgService.Receipts():
				if !ok {
					return
				}
				if err := sink.AddReceipt(r); err != nil {
					slog.Error("Failed to store receipt", "error", err, "transport", r.Transport, "to", r.To)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
