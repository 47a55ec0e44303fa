package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

func sampleContact() models.Contact {
	return models.Contact{
		ID: "4b7c2a1e-0000-4000-8000-000000000001",
		Submission: models.Submission{
			Name:     "Alice",
			Email:    "alice@x.com",
			Phone:    "+1-555-000",
			Industry: "Technology",
			Message:  "Need help with support",
			Consent:  true,
		},
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestComposeConfirmationRestatesFields(t *testing.T) {
	msg, err := ComposeConfirmation(sampleContact(), Brand{Name: "Acme BPO", SupportEmail: "hello@acme.test"})
	if err != nil {
		t.Fatalf("ComposeConfirmation returned error: %v", err)
	}
	if msg.To != "alice@x.com" {
		t.Errorf("To = %q, want alice@x.com", msg.To)
	}
	if !strings.Contains(msg.Subject, "Acme BPO") {
		t.Errorf("Subject = %q, want brand name", msg.Subject)
	}
	for _, want := range []string{"Alice", "alice@x.com", "+1-555-000", "Technology", "Need help with support", "Company: -", "hello@acme.test"} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("text body missing %q:\n%s", want, msg.Text)
		}
	}
	if !strings.Contains(msg.HTML, "Need help with support") {
		t.Errorf("html body missing message:\n%s", msg.HTML)
	}
}

func TestComposeConfirmationStripsMarkup(t *testing.T) {
	c := sampleContact()
	c.Name = `<b>Alice</b>`
	c.Message = `Hi <script>alert("x")</script>there & welcome`

	msg, err := ComposeConfirmation(c, Brand{Name: "Acme", SupportEmail: "hello@acme.test"})
	if err != nil {
		t.Fatalf("ComposeConfirmation returned error: %v", err)
	}
	if strings.Contains(msg.Text, "<b>") || strings.Contains(msg.Text, "<script>") {
		t.Errorf("text body still contains markup:\n%s", msg.Text)
	}
	if strings.Contains(msg.HTML, "<script>") || strings.Contains(msg.HTML, "<b>Alice") {
		t.Errorf("html body contains user markup:\n%s", msg.HTML)
	}
	if !strings.Contains(msg.Text, "there & welcome") {
		t.Errorf("text body should keep plain ampersands:\n%s", msg.Text)
	}
	if !strings.Contains(msg.HTML, "there &amp; welcome") {
		t.Errorf("html body should escape ampersands exactly once:\n%s", msg.HTML)
	}
}

func TestNewSMTPMailerRequiresHostAndSender(t *testing.T) {
	if _, err := NewSMTPMailer(WithFrom("noreply@acme.test")); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("missing host error = %v, want ErrNotConfigured", err)
	}
	if _, err := NewSMTPMailer(WithHost("smtp.acme.test")); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("missing sender error = %v, want ErrNotConfigured", err)
	}
	m, err := NewSMTPMailer(WithHost("smtp.acme.test"), WithFrom("noreply@acme.test"), WithCredentials("user", "pass"))
	if err != nil {
		t.Fatalf("NewSMTPMailer returned error: %v", err)
	}
	if m.cfg.Port != DefaultSMTPPort {
		t.Errorf("port = %d, want default %d", m.cfg.Port, DefaultSMTPPort)
	}
}

func TestSMTPMailerRejectsInvalidRecipient(t *testing.T) {
	m, err := NewSMTPMailer(WithHost("smtp.acme.test"), WithFrom("noreply@acme.test"))
	if err != nil {
		t.Fatalf("NewSMTPMailer returned error: %v", err)
	}
	if _, err := m.buildMessage(Message{To: "not an address", Subject: "x", Text: "y"}); err == nil {
		t.Error("expected error for invalid recipient")
	}
	if _, err := m.buildMessage(Message{To: "alice@x.com", Subject: "x", Text: "y", HTML: "<p>y</p>"}); err != nil {
		t.Errorf("buildMessage returned error: %v", err)
	}
}

func TestMockMailer(t *testing.T) {
	m := &MockMailer{}
	if err := m.Send(context.Background(), Message{To: "alice@x.com"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(m.Messages()) != 1 {
		t.Errorf("recorded %d messages, want 1", len(m.Messages()))
	}

	m.Err = errors.New("smtp down")
	if err := m.Send(context.Background(), Message{To: "bob@x.com"}); err == nil {
		t.Error("expected configured error")
	}
	if len(m.Messages()) != 1 {
		t.Error("failed sends should not be recorded")
	}
}

func TestLogMailerNeverFails(t *testing.T) {
	if err := (LogMailer{}).Send(context.Background(), Message{To: "alice@x.com"}); err != nil {
		t.Errorf("LogMailer.Send returned error: %v", err)
	}
}
