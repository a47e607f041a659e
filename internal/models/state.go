// Package models defines session state structures for WarfarinBot flows.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Bleeding is the answer to the "are you bleeding" question.
type Bleeding string

const (
	BleedingYes Bleeding = "yes"
	BleedingNo  Bleeding = "no"
)

// ParseBleeding accepts exactly "yes" or "no" after trimming and lower-casing.
func ParseBleeding(raw string) (Bleeding, error) {
	switch Bleeding(strings.ToLower(strings.TrimSpace(raw))) {
	case BleedingYes:
		return BleedingYes, nil
	case BleedingNo:
		return BleedingNo, nil
	default:
		return "", fmt.Errorf("bleeding answer must be yes or no, got %q", raw)
	}
}

// Session is the in-progress questionnaire of one user.
// A session exists only while the user has an incomplete flow.
type Session struct {
	UserID    string    `json:"user_id"`
	Flow      FlowType  `json:"flow"`
	Step      StateType `json:"step"`
	INR       float64   `json:"inr,omitempty"`
	TWD       float64   `json:"twd,omitempty"`
	Bleeding  Bleeding  `json:"bleeding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns a fresh session positioned at the first question of the flow.
func NewSession(userID string, flow FlowType, now time.Time) Session {
	return Session{
		UserID:    userID,
		Flow:      flow,
		Step:      StateAwaitINR,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
