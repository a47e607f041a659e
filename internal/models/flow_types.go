// Package models defines flow type definitions to avoid circular imports.
package models

import "fmt"

// FlowType represents a named multi-step dialogue sequence.
type FlowType string

// StateType represents the pending question within a flow.
type StateType string

// Flow type constants.
const (
	FlowTypeWarfarin FlowType = "warfarin"
)

// State constants for the warfarin dosing flow.
const (
	StateAwaitINR              StateType = "AWAIT_INR"
	StateAwaitTWD              StateType = "AWAIT_TWD"
	StateAwaitBleeding         StateType = "AWAIT_BLEEDING"
	StateAwaitSupplementChoice StateType = "AWAIT_SUPPLEMENT_CHOICE"
	StateAwaitSupplementText   StateType = "AWAIT_SUPPLEMENT_TEXT"
)

// WarfarinStates lists the flow states in the order they are visited.
var WarfarinStates = []StateType{
	StateAwaitINR,
	StateAwaitTWD,
	StateAwaitBleeding,
	StateAwaitSupplementChoice,
	StateAwaitSupplementText,
}

// IsValid reports whether s is one of the known warfarin flow states.
func (s StateType) IsValid() bool {
	switch s {
	case StateAwaitINR, StateAwaitTWD, StateAwaitBleeding, StateAwaitSupplementChoice, StateAwaitSupplementText:
		return true
	default:
		return false
	}
}

// ParseStateType converts a stored state tag back into a StateType.
func ParseStateType(raw string) (StateType, error) {
	s := StateType(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown flow state %q", raw)
	}
	return s, nil
}
