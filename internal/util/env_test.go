package util

import (
	"reflect"
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		val  string
		def  bool
		want bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{" YES ", false, true},
		{"on", false, true},
		{"0", true, false},
		{"off", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("WARFARINBOT_TEST_BOOL", tt.val)
		if got := ParseBoolEnv("WARFARINBOT_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.val, tt.def, got, tt.want)
		}
	}
}

func TestGetenvDefault(t *testing.T) {
	t.Setenv("WARFARINBOT_TEST_STR", "  ")
	if got := GetenvDefault("WARFARINBOT_TEST_STR", "d"); got != "d" {
		t.Errorf("blank value should fall back, got %q", got)
	}
	t.Setenv("WARFARINBOT_TEST_STR", " v ")
	if got := GetenvDefault("WARFARINBOT_TEST_STR", "d"); got != "v" {
		t.Errorf("got %q, want %q", got, "v")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" LINE, twilio,,line ,whatsapp")
	want := []string{"line", "twilio", "whatsapp"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitList = %v, want %v", got, want)
	}
	if SplitList("") != nil {
		t.Error("expected nil for empty input")
	}
}

func TestParseDurationEnv(t *testing.T) {
	tests := []struct {
		val  string
		want time.Duration
	}{
		{"", time.Minute},
		{"24h", 24 * time.Hour},
		{" 90m ", 90 * time.Minute},
		{"0", 0},
		{"-1h", time.Minute},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("WARFARINBOT_TEST_DURATION", tt.val)
		if got := ParseDurationEnv("WARFARINBOT_TEST_DURATION", time.Minute); got != tt.want {
			t.Errorf("ParseDurationEnv(%q) = %v, want %v", tt.val, got, tt.want)
		}
	}
}
