// Package messaging connects chat transports (LINE, Twilio WhatsApp, whatsmeow) to the dialogue.
//
// Each transport is a Service: it turns verified inbound webhooks or client events into
// models.InboundEvent values on Events(), and delivers replies with SendReply.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/BTreeMap/WarfarinBot/internal/models"
)

const (
	// DefaultChannelBufferSize is the buffer of the events and receipts channels.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds how long an emit waits on a full channel before dropping.
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned by SendReply after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

var phoneNumberRegex = regexp.MustCompile(`\D`)

// Service defines a pluggable chat transport.
type Service interface {
	// Name identifies the transport in receipts and logs.
	Name() string

	// ValidateAndCanonicalizeRecipient validates a user identifier and returns its canonical form.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendReply answers an inbound event with one or more messages.
	SendReply(ctx context.Context, evt models.InboundEvent, msgs []models.OutboundMessage) error

	// Start begins any background processing (e.g., client event handlers).
	Start(ctx context.Context) error

	// Stop stops background processing and closes the channels.
	Stop() error

	// Receipts returns a channel of delivery receipts.
	Receipts() <-chan models.Receipt

	// Events returns a channel of verified inbound text messages.
	Events() <-chan models.InboundEvent
}

// CanonicalizePhone strips every non-digit and requires at least 6 digits.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	return canonical, nil
}

// eventBus owns the two outbound channels of a service and makes emitting safe against Stop.
type eventBus struct {
	transport string
	receipts  chan models.Receipt
	events    chan models.InboundEvent
	mu        sync.RWMutex
	stopped   bool
}

func newEventBus(transport string) *eventBus {
	return &eventBus{
		transport: transport,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		events:    make(chan models.InboundEvent, DefaultChannelBufferSize),
	}
}

func (b *eventBus) Name() string {
	return b.transport
}

func (b *eventBus) Receipts() <-chan models.Receipt {
	return b.receipts
}

func (b *eventBus) Events() <-chan models.InboundEvent {
	return b.events
}

func (b *eventBus) isStopped() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stopped
}

// stop closes both channels once. Emitters hold the read lock, so close never races a send.
func (b *eventBus) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	close(b.receipts)
	close(b.events)
	slog.Info("Messaging service stopped and channels closed", "transport", b.transport)
}

// emitEvent queues an inbound event and reports whether it was accepted.
func (b *eventBus) emitEvent(evt models.InboundEvent) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		slog.Warn("Messaging dropping inbound event (service stopped)", "transport", b.transport, "userID", evt.UserID)
		return false
	}
	select {
	case b.events <- evt:
		slog.Debug("Messaging inbound event queued", "transport", b.transport, "userID", evt.UserID, "messageID", evt.MessageID)
		return true
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("Messaging events channel blocked, dropping message", "transport", b.transport, "userID", evt.UserID)
		return false
	}
}

func (b *eventBus) emitReceipt(to string, status models.MessageStatus, at time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return
	}
	r := models.Receipt{To: to, Transport: b.transport, Status: status, Time: at.Unix()}
	select {
	case b.receipts <- r:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("Messaging receipts channel blocked, dropping receipt", "transport", b.transport, "to", to)
	}
}
