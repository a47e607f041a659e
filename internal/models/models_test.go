package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBleeding(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Bleeding
		wantErr bool
	}{
		{name: "yes", raw: "yes", want: BleedingYes},
		{name: "no", raw: "no", want: BleedingNo},
		{name: "upper case with spaces", raw: "  YES ", want: BleedingYes},
		{name: "mixed case", raw: "No", want: BleedingNo},
		{name: "thai is not accepted", raw: "ใช่", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "y is not accepted", raw: "y", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBleeding(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStateType(t *testing.T) {
	for _, s := range WarfarinStates {
		got, err := ParseStateType(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStateType("AWAIT_SOMETHING")
	assert.Error(t, err)
}

func TestNewSessionStartsAtINR(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	s := NewSession("U1", FlowTypeWarfarin, now)

	assert.Equal(t, StateAwaitINR, s.Step)
	assert.Equal(t, FlowTypeWarfarin, s.Flow)
	assert.Equal(t, now, s.CreatedAt)
	assert.Zero(t, s.INR)
	assert.Empty(t, s.Bleeding)
}

func TestChoiceMenuOptionsKeepPageOrder(t *testing.T) {
	menu := ChoiceMenu{Pages: []ChoicePage{
		{Text: "p1", Options: []ChoiceOption{{Label: "a", Text: "a"}, {Label: "b", Text: "b"}}},
		{Text: "p2", Options: []ChoiceOption{{Label: "c", Text: "c"}}},
	}}

	opts := menu.Options()
	require.Len(t, opts, 3)
	assert.Equal(t, "a", opts[0].Text)
	assert.Equal(t, "c", opts[2].Text)

	assert.True(t, MenuMessage(menu).IsMenu())
	assert.False(t, TextMessage("hi").IsMenu())
}

func TestAPIResponseEnvelopes(t *testing.T) {
	ok := Success([]Receipt{{To: "U1", Status: MessageStatusSent}})
	assert.Equal(t, APIStatusOK, ok.Status)
	assert.False(t, ok.Failed())
	assert.Empty(t, ok.Message)

	bad := Error("Failed to fetch receipts")
	assert.True(t, bad.Failed())
	assert.Equal(t, "Failed to fetch receipts", bad.Message)
	assert.Nil(t, bad.Result)
}
