package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/store"
	"github.com/BTreeMap/LeadPipe/internal/twiliomsg"
)

const sender = "+1 (555) 123-4567"

type routerFixture struct {
	svc         *TwilioService
	mock        *twiliomsg.MockClient
	store       *store.InMemoryStore
	router      *ChatRouter
	submissions []models.Submission
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{mock: twiliomsg.NewMockClient(), store: store.NewInMemoryStore()}
	f.svc = NewTwilioService(f.mock)
	submit := flow.SubmitterFunc(func(_ context.Context, sub models.Submission) (models.Contact, error) {
		f.submissions = append(f.submissions, sub)
		return models.Contact{ID: "c_1", Submission: sub, CreatedAt: time.Now()}, nil
	})
	sessions := flow.NewSessionManager(f.store, flow.DefaultScript(), submit)
	f.router = NewChatRouter(f.svc, sessions, "sms")
	t.Cleanup(func() {
		sessions.Close()
		f.svc.Stop()
	})
	return f
}

// send delivers body from the test sender and returns the reply.
func (f *routerFixture) send(t *testing.T, body string) string {
	t.Helper()
	before := len(f.mock.Messages())
	if err := f.router.HandleMessage(context.Background(), models.InboundMessage{From: sender, Body: body}); err != nil {
		t.Fatalf("HandleMessage(%q) returned error: %v", body, err)
	}
	msgs := f.mock.Messages()
	if len(msgs) != before+1 {
		t.Fatalf("expected one reply to %q, got %d", body, len(msgs)-before)
	}
	if msgs[len(msgs)-1].To != "15551234567" {
		t.Errorf("reply sent to %q", msgs[len(msgs)-1].To)
	}
	return msgs[len(msgs)-1].Body
}

func TestChatRouter_FullConversation(t *testing.T) {
	f := newRouterFixture(t)
	script := flow.DefaultScript()

	reply := f.send(t, "Hi")
	if !strings.Contains(reply, script.Greeting) || !strings.Contains(reply, "What's your name?") {
		t.Fatalf("unexpected opening reply: %q", reply)
	}
	if s, _ := f.store.GetSession(context.Background(), "sms:15551234567"); s == nil {
		t.Fatal("expected session stored under channel-scoped ID")
	}

	f.send(t, "Alice")
	f.send(t, "alice@x.com")
	f.send(t, "+1-555-000")
	reply = f.send(t, "skip")
	if !strings.Contains(reply, "\n1. ") {
		t.Errorf("expected numbered industry options, got %q", reply)
	}
	f.send(t, "3")
	reply = f.send(t, "Need help with support")
	if !strings.Contains(reply, flow.ConsentHint) {
		t.Errorf("expected consent hint, got %q", reply)
	}
	reply = f.send(t, "yes")
	if reply != script.Message(script.SuccessMessage) {
		t.Errorf("expected success message, got %q", reply)
	}

	if len(f.submissions) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(f.submissions))
	}
	sub := f.submissions[0]
	if sub.Name != "Alice" || sub.CompanyName != "" || sub.Industry != models.Industries[2] || !sub.Consent {
		t.Errorf("unexpected submission: %+v", sub)
	}

	if reply := f.send(t, "hello?"); reply != script.ClosedMessage+" "+restartHint {
		t.Errorf("expected closed message with restart hint, got %q", reply)
	}
	if reply := f.send(t, " RESTART "); !strings.Contains(reply, script.Greeting) {
		t.Errorf("expected restart to greet again, got %q", reply)
	}
	if len(f.submissions) != 1 {
		t.Errorf("restart must not resubmit, got %d submissions", len(f.submissions))
	}
}

func TestChatRouter_RetryHints(t *testing.T) {
	f := newRouterFixture(t)
	for _, in := range []string{"Hi", "Alice", "alice@x.com", "n/a", "skip"} {
		f.send(t, in)
	}

	reply := f.send(t, "Underwater basket weaving")
	if !strings.HasPrefix(reply, unknownOptionHint) || !strings.Contains(reply, "Which industry") {
		t.Errorf("expected unknown-option hint with prompt, got %q", reply)
	}

	reply = f.send(t, "   ")
	if !strings.HasPrefix(reply, emptyAnswerHint) || !strings.Contains(reply, "\n1. ") {
		t.Errorf("expected empty-answer hint with options, got %q", reply)
	}

	snap, err := f.store.GetSession(context.Background(), "sms:15551234567")
	if err != nil || snap == nil {
		t.Fatalf("GetSession: %v", err)
	}
	if snap.StepIndex != 4 {
		t.Errorf("expected session to stay on the industry step, got %d", snap.StepIndex)
	}
}

func TestChatRouter_TooLongHint(t *testing.T) {
	f := newRouterFixture(t)
	for _, in := range []string{"Hi", "Alice", "alice@x.com"} {
		f.send(t, in)
	}

	reply := f.send(t, strings.Repeat("5", models.MaxPhoneLength+1))
	if !strings.HasPrefix(reply, tooLongHint) || !strings.Contains(reply, "phone number") {
		t.Errorf("expected too-long hint with the phone prompt, got %q", reply)
	}
	snap, err := f.store.GetSession(context.Background(), "sms:15551234567")
	if err != nil || snap == nil {
		t.Fatalf("GetSession: %v", err)
	}
	if snap.StepIndex != 2 {
		t.Errorf("expected session to stay on the phone step, got %d", snap.StepIndex)
	}
}

func TestChatRouter_InvalidSender(t *testing.T) {
	f := newRouterFixture(t)
	err := f.router.HandleMessage(context.Background(), models.InboundMessage{From: "abc", Body: "hi"})
	if err == nil {
		t.Fatal("expected error for invalid sender")
	}
	if len(f.mock.Messages()) != 0 {
		t.Error("expected no reply")
	}
}

func TestChatRouter_Run(t *testing.T) {
	f := newRouterFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.router.Run(ctx) }()

	f.svc.inbox.emit(models.InboundMessage{From: sender, Body: "Hi"})

	deadline := time.Now().Add(2 * time.Second)
	for len(f.mock.Messages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(f.mock.Messages()) != 1 {
		t.Fatalf("expected greeting reply, got %d messages", len(f.mock.Messages()))
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestChatRouter_RunStopsWhenServiceStops(t *testing.T) {
	f := newRouterFixture(t)
	done := make(chan error, 1)
	go func() { done <- f.router.Run(context.Background()) }()

	f.svc.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
