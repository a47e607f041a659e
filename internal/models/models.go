// Package models defines the core data structures for WarfarinBot.
//
// It includes dialogue sessions, normalized inbound/outbound messages and delivery receipts,
// which are shared across modules.
package models

import "errors"

var (
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
	ErrEmptyUserID    = errors.New("user id cannot be empty")
	ErrEmptyMessages  = errors.New("at least one outbound message is required")
)

// MessageStatus represents the delivery status of a message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// Receipt records a delivery event for an outbound reply.
type Receipt struct {
	To        string        `json:"to"`
	Transport string        `json:"transport,omitempty"`
	Status    MessageStatus `json:"status"`
	Time      int64         `json:"time"`
}

// APIResponse is the JSON envelope returned by every API endpoint.
type APIResponse struct {
	Status  APIStatus   `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success wraps result in an "ok" envelope.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Result: result}
}

// Error builds an "error" envelope carrying message.
func Error(message string) APIResponse {
	return APIResponse{Status: APIStatusError, Message: message}
}

// Failed reports whether the envelope describes an error.
func (r APIResponse) Failed() bool {
	return r.Status == APIStatusError
}
