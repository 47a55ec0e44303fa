package messaging

import (
	"testing"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCanonicalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"digits", "15551234567", "15551234567", false},
		{"formatted", "+1 (555) 123-4567", "15551234567", false},
		{"empty", "", "", true},
		{"no digits", "abc", "", true},
		{"too short", "+1 234", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalizePhone(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CanonicalizePhone(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CanonicalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestInbox_EmitAfterClose(t *testing.T) {
	b := newInbox()
	if !b.emit(models.InboundMessage{From: "1555000111", Body: "hi"}) {
		t.Fatal("expected emit to succeed on open inbox")
	}
	b.close()
	b.close()

	if b.emit(models.InboundMessage{From: "1555000111", Body: "again"}) {
		t.Error("expected emit to fail after close")
	}
	msg, ok := <-b.ch
	if !ok || msg.Body != "hi" {
		t.Errorf("expected buffered message before close, got %+v ok=%v", msg, ok)
	}
	if _, ok := <-b.ch; ok {
		t.Error("expected channel to be closed")
	}
}
