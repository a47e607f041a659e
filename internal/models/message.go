package models

import "time"

// InboundEvent is a normalized text message received from any transport.
// Authenticity has already been verified by the transport layer.
type InboundEvent struct {
	// MessageID is the transport's identifier for the message, used for deduplication.
	MessageID string `json:"message_id,omitempty"`
	// UserID identifies the sender (LINE user id, phone number, ...).
	UserID string `json:"user_id"`
	Text   string `json:"text"`
	// ReplyHandle addresses the response: a LINE reply token or a recipient number.
	ReplyHandle string `json:"reply_handle"`
	Time        int64  `json:"time"`
}

// ChoiceOption is one selectable entry of a choice menu. Selecting it sends Text back.
type ChoiceOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// ChoicePage groups options rendered together (a carousel column on LINE).
type ChoicePage struct {
	Title   string         `json:"title,omitempty"`
	Text    string         `json:"text"`
	Options []ChoiceOption `json:"options"`
}

// ChoiceMenu is a structured prompt delivered as a rich template where the transport supports one.
type ChoiceMenu struct {
	AltText string       `json:"alt_text"`
	Pages   []ChoicePage `json:"pages"`
}

// Options returns every option of the menu in page order.
func (m ChoiceMenu) Options() []ChoiceOption {
	var out []ChoiceOption
	for _, p := range m.Pages {
		out = append(out, p.Options...)
	}
	return out
}

// OutboundMessage is either a plain text message or a choice menu.
type OutboundMessage struct {
	Text       string      `json:"text,omitempty"`
	ChoiceMenu *ChoiceMenu `json:"choice_menu,omitempty"`
}

// IsMenu reports whether the message carries a choice menu.
func (m OutboundMessage) IsMenu() bool {
	return m.ChoiceMenu != nil
}

// TextMessage builds a plain text outbound message.
func TextMessage(text string) OutboundMessage {
	return OutboundMessage{Text: text}
}

// MenuMessage builds a choice-menu outbound message.
func MenuMessage(menu ChoiceMenu) OutboundMessage {
	return OutboundMessage{ChoiceMenu: &menu}
}

// NewInboundEvent fills Time with now when the transport did not provide one.
func NewInboundEvent(messageID, userID, text, replyHandle string, at time.Time) InboundEvent {
	if at.IsZero() {
		at = time.Now()
	}
	return InboundEvent{
		MessageID:   messageID,
		UserID:      userID,
		Text:        text,
		ReplyHandle: replyHandle,
		Time:        at.Unix(),
	}
}
