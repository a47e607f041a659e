// Package line wraps the LINE Messaging API reply endpoint for WarfarinBot.
//
// Outbound messages are converted to LINE message objects: plain text becomes a text message and
// a choice menu becomes a carousel template whose columns carry message actions.
package line

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/BTreeMap/WarfarinBot/internal/models"
)

// Limits imposed by the Messaging API on a single reply.
const (
	MaxMessagesPerReply = 5
	MaxCarouselColumns  = 10
	MaxColumnActions    = 3
)

// ErrEmptyReplyToken is returned when a reply is attempted without a token.
var ErrEmptyReplyToken = errors.New("reply token cannot be empty")

// LineSender sends replies bound to a webhook reply token.
type LineSender interface {
	Reply(ctx context.Context, replyToken string, msgs []models.OutboundMessage) error
}

// Opts holds configuration options for the LINE client.
type Opts struct {
	ChannelToken string
}

// Option defines a configuration option for the LINE client.
type Option func(*Opts)

// WithChannelToken sets the channel access token.
func WithChannelToken(token string) Option {
	return func(o *Opts) { o.ChannelToken = token }
}

// Client is a LineSender backed by the LINE Messaging API.
type Client struct {
	api *messaging_api.MessagingApiAPI
}

// NewClient creates a LINE client. The channel access token falls back to
// LINE_CHANNEL_ACCESS_TOKEN when not given as an option.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ChannelToken == "" {
		cfg.ChannelToken = os.Getenv("LINE_CHANNEL_ACCESS_TOKEN")
	}
	slog.Debug("LINE client config loaded", "ChannelToken_set", cfg.ChannelToken != "")
	if cfg.ChannelToken == "" {
		return nil, fmt.Errorf("LINE channel access token must be provided")
	}

	api, err := messaging_api.NewMessagingApiAPI(cfg.ChannelToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE messaging API client: %w", err)
	}
	return &Client{api: api}, nil
}

// Reply answers a webhook event with up to MaxMessagesPerReply messages.
func (c *Client) Reply(ctx context.Context, replyToken string, msgs []models.OutboundMessage) error {
	if replyToken == "" {
		return ErrEmptyReplyToken
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	lineMsgs, err := ToLineMessages(msgs)
	if err != nil {
		return err
	}

	_, err = c.api.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   lineMsgs,
	})
	if err != nil {
		slog.Error("LINE ReplyMessage failed", "error", err, "messages", len(lineMsgs))
		return fmt.Errorf("failed to reply via LINE: %w", err)
	}
	slog.Debug("LINE reply sent", "messages", len(lineMsgs))
	return nil
}

// ToLineMessages converts outbound messages to LINE message objects.
func ToLineMessages(msgs []models.OutboundMessage) ([]messaging_api.MessageInterface, error) {
	if len(msgs) == 0 {
		return nil, models.ErrEmptyMessages
	}
	if len(msgs) > MaxMessagesPerReply {
		return nil, fmt.Errorf("too many messages for one reply: %d > %d", len(msgs), MaxMessagesPerReply)
	}

	out := make([]messaging_api.MessageInterface, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsMenu() {
			out = append(out, messaging_api.TextMessage{Text: m.Text})
			continue
		}
		tmpl, err := carousel(*m.ChoiceMenu)
		if err != nil {
			return nil, err
		}
		out = append(out, tmpl)
	}
	return out, nil
}

// carousel renders a menu as a carousel template. Every column must have the same number of
// actions, which the menu builder guarantees.
func carousel(menu models.ChoiceMenu) (*messaging_api.TemplateMessage, error) {
	if len(menu.Pages) == 0 || len(menu.Pages) > MaxCarouselColumns {
		return nil, fmt.Errorf("menu must have 1-%d pages, got %d", MaxCarouselColumns, len(menu.Pages))
	}
	want := len(menu.Pages[0].Options)

	columns := make([]messaging_api.CarouselColumn, 0, len(menu.Pages))
	for i, page := range menu.Pages {
		if n := len(page.Options); n == 0 || n > MaxColumnActions || n != want {
			return nil, fmt.Errorf("menu page %d has %d options, want %d (max %d)", i, n, want, MaxColumnActions)
		}
		actions := make([]messaging_api.ActionInterface, 0, len(page.Options))
		for _, opt := range page.Options {
			actions = append(actions, &messaging_api.MessageAction{Label: opt.Label, Text: opt.Text})
		}
		columns = append(columns, messaging_api.CarouselColumn{
			Title:   page.Title,
			Text:    page.Text,
			Actions: actions,
		})
	}

	return &messaging_api.TemplateMessage{
		AltText:  menu.AltText,
		Template: &messaging_api.CarouselTemplate{Columns: columns},
	}, nil
}

// MockClient records replies instead of calling LINE.
type MockClient struct {
	mu      sync.Mutex
	Replies []SentReply
	Err     error
}

// SentReply is one recorded Reply call.
type SentReply struct {
	ReplyToken string
	Messages   []models.OutboundMessage
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Reply(ctx context.Context, replyToken string, msgs []models.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if replyToken == "" {
		return ErrEmptyReplyToken
	}
	m.Replies = append(m.Replies, SentReply{ReplyToken: replyToken, Messages: msgs})
	return nil
}

// Sent returns a copy of the recorded replies.
func (m *MockClient) Sent() []SentReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentReply(nil), m.Replies...)
}
