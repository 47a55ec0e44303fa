package twiliomsg

import (
	"context"
	"errors"
	"testing"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	if err := mock.SendMessage(ctx, "12345", "Hello Test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := mock.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Body != "Hello Test" {
		t.Errorf("expected body %q, got %q", "Hello Test", msgs[0].Body)
	}

	mock.Err = errors.New("rate limited")
	if err := mock.SendMessage(ctx, "12345", "again"); err == nil {
		t.Error("expected configured error")
	}
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"no credentials", []Option{WithFrom("+15550000000")}},
		{"no token", []Option{WithAccountSID("AC123"), WithFrom("+15550000000")}},
		{"no from", []Option{WithAccountSID("AC123"), WithAuthToken("secret")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.opts...); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("secret"), WithFrom("+15550000000")); err != nil {
		t.Errorf("unexpected error with full config: %v", err)
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		from, digits, want string
	}{
		{"+15550000000", "15551112222", "+15551112222"},
		{"whatsapp:+15550000000", "15551112222", "whatsapp:+15551112222"},
		{"+15550000000", "+15551112222", "+15551112222"},
	}
	for _, tt := range tests {
		if got := Address(tt.from, tt.digits); got != tt.want {
			t.Errorf("Address(%q, %q) = %q, want %q", tt.from, tt.digits, got, tt.want)
		}
	}
}
