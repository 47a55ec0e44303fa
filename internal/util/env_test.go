package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"YES", false, true},
		{" on ", false, true},
		{"0", true, false},
		{"off", true, false},
		{"maybe", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("LEADPIPE_TEST_BOOL", tt.value)
			if got := ParseBoolEnv("LEADPIPE_TEST_BOOL", tt.def); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
			}
		})
	}
}

func TestParseDurationEnv(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 30 * time.Minute},
		{"45s", 45 * time.Second},
		{"2h", 2 * time.Hour},
		{"-5m", 30 * time.Minute},
		{"soon", 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("LEADPIPE_TEST_DURATION", tt.value)
			if got := ParseDurationEnv("LEADPIPE_TEST_DURATION", 30*time.Minute); got != tt.want {
				t.Errorf("ParseDurationEnv(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("LEADPIPE_TEST_INT", "587")
	if got := ParseIntEnv("LEADPIPE_TEST_INT", 25); got != 587 {
		t.Errorf("ParseIntEnv() = %d, want 587", got)
	}
	t.Setenv("LEADPIPE_TEST_INT", "abc")
	if got := ParseIntEnv("LEADPIPE_TEST_INT", 25); got != 25 {
		t.Errorf("ParseIntEnv() with invalid value = %d, want 25", got)
	}
}
