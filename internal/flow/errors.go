package flow

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownCommand is reported when a user without a session sends something other than a
// trigger phrase.
var ErrUnknownCommand = errors.New("unknown command")

// ParseError reports a numeric answer that could not be parsed.
type ParseError struct {
	Field string
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %s from %q: %v", e.Field, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError reports an answer outside the accepted set for the pending question.
type ValidationError struct {
	Field string
	Input string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Input, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

var errNotFinite = errors.New("value is not a finite number")

// ParseFloat parses a free-text numeric answer. NaN and infinities are rejected.
func ParseFloat(field, text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, &ParseError{Field: field, Input: text, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ParseError{Field: field, Input: text, Err: errNotFinite}
	}
	return v, nil
}
