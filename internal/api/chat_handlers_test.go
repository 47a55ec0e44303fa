package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/messaging"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/testutil"
	"github.com/BTreeMap/LeadPipe/internal/twiliomsg"
)

func newTestServer(t *testing.T) (*Server, *testutil.Deps) {
	t.Helper()
	deps := testutil.NewDeps(t)
	return NewServer(deps.Sessions, deps.Handler, nil), deps
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func startSession(t *testing.T, s *Server) models.ChatSessionView {
	t.Helper()
	rr := do(t, s, testutil.CreateHTTPRequest(t, http.MethodPost, "/chat/sessions", nil))
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "start session")
	var view models.ChatSessionView
	testutil.DecodeResult(t, rr, &view)
	return view
}

func sendText(t *testing.T, s *Server, id, text string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, s, testutil.CreateHTTPRequest(t, http.MethodPost, "/chat/sessions/"+id+"/messages", models.ChatMessageRequest{Text: text}))
}

func TestStartSessionHandler(t *testing.T) {
	s, _ := newTestServer(t)
	view := startSession(t, s)

	if view.SessionID == "" {
		t.Fatal("expected session ID")
	}
	if view.State != models.SessionStateAwaitingStep {
		t.Errorf("expected awaiting_step, got %s", view.State)
	}
	script := flow.DefaultScript()
	if len(view.Transcript) != 2 || view.Transcript[0].Text != script.Greeting || view.Transcript[1].Text != script.Steps[0].Prompt {
		t.Errorf("unexpected opening transcript: %+v", view.Transcript)
	}
}

func TestChatHappyPath(t *testing.T) {
	s, deps := newTestServer(t)
	view := startSession(t, s)

	answers := []string{"Alice", "alice@x.com", "+1-555-000", "skip", "Technology", "Need help with support"}
	for _, a := range answers {
		rr := sendText(t, s, view.SessionID, a)
		testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "answer "+a)
	}

	rr := sendText(t, s, view.SessionID, "Yes, I agree")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "consent")
	var turn models.ChatTurnView
	testutil.DecodeResult(t, rr, &turn)
	if turn.State != models.SessionStateCompleted || turn.SubmissionFailed || turn.ContactID == "" {
		t.Fatalf("unexpected final turn: %+v", turn)
	}

	contacts, err := deps.Store.ListContacts(context.Background())
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if len(contacts) != 1 || contacts[0].Name != "Alice" || contacts[0].CompanyName != "" || !contacts[0].Consent {
		t.Errorf("unexpected stored contacts: %+v", contacts)
	}
	if msgs := deps.Mailer.Messages(); len(msgs) != 1 || msgs[0].To != "alice@x.com" {
		t.Errorf("expected one confirmation e-mail, got %+v", msgs)
	}

	rr = sendText(t, s, view.SessionID, "anything else")
	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "closed session")
	body := testutil.AssertJSONResponse(t, rr, "error")
	if msg, _ := body["message"].(string); msg != flow.DefaultScript().ClosedMessage || strings.Contains(strings.ToLower(msg), "restart") {
		t.Errorf("closed-session message = %q, want the channel-neutral closed message", msg)
	}

	rr = do(t, s, testutil.CreateHTTPRequest(t, http.MethodGet, "/chat/sessions/"+view.SessionID, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get session")
	var got models.ChatSessionView
	testutil.DecodeResult(t, rr, &got)
	if got.State != models.SessionStateCompleted {
		t.Errorf("expected completed, got %s", got.State)
	}
}

func TestSendMessageHandler_Rejections(t *testing.T) {
	s, _ := newTestServer(t)
	view := startSession(t, s)

	rr := sendText(t, s, view.SessionID, "   ")
	testutil.AssertHTTPStatus(t, http.StatusUnprocessableEntity, rr.Code, "empty answer")
	testutil.AssertJSONResponse(t, rr, "error")

	rr = sendText(t, s, view.SessionID, strings.Repeat("a", models.MaxNameLength+1))
	testutil.AssertHTTPStatus(t, http.StatusUnprocessableEntity, rr.Code, "over-long answer")
	testutil.AssertJSONResponse(t, rr, "error")

	req := httptest.NewRequest(http.MethodPost, "/chat/sessions/"+view.SessionID+"/messages", strings.NewReader("{not json"))
	rr = do(t, s, req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid JSON")

	rr = sendText(t, s, "s_missing", "hello")
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown session")
}

func TestEndSessionHandler(t *testing.T) {
	s, deps := newTestServer(t)
	view := startSession(t, s)

	rr := do(t, s, testutil.CreateHTTPRequest(t, http.MethodDelete, "/chat/sessions/"+view.SessionID, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "end session")
	testutil.AssertJSONResponse(t, rr, "ok")

	if snap, _ := deps.Store.GetSession(context.Background(), view.SessionID); snap != nil {
		t.Error("expected session to be deleted")
	}
	rr = do(t, s, testutil.CreateHTTPRequest(t, http.MethodGet, "/chat/sessions/"+view.SessionID, nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "get ended session")
}

func TestContactRoutes(t *testing.T) {
	s, deps := newTestServer(t)

	body := `{"name":"Bob","email":"bob@example.com","message":"Call me","consent":true}`
	rr := do(t, s, httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(body)))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "collector POST")
	if contacts, _ := deps.Store.ListContacts(context.Background()); len(contacts) != 1 {
		t.Errorf("expected 1 contact, got %d", len(contacts))
	}

	rr = do(t, s, httptest.NewRequest(http.MethodOptions, "/contact", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "collector preflight")

	rr = do(t, s, httptest.NewRequest(http.MethodGet, "/contact/schema", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "schema")
	if !strings.Contains(rr.Body.String(), `"consent"`) {
		t.Errorf("schema missing consent property: %s", rr.Body.String())
	}
}

func TestHealthAndMethodRouting(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "healthz")
	testutil.AssertJSONResponse(t, rr, "ok")

	rr = do(t, s, httptest.NewRequest(http.MethodPut, "/chat/sessions", nil))
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "PUT sessions")

	rr = do(t, s, httptest.NewRequest(http.MethodPost, "/twilio/webhook", nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "webhook without Twilio")
}

func TestTwilioWebhookRoute(t *testing.T) {
	deps := testutil.NewDeps(t)
	svc := messaging.NewTwilioService(twiliomsg.NewMockClient())
	defer svc.Stop()
	s := NewServer(deps.Sessions, deps.Handler, svc)

	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader("From=%2B15551234567&Body=hello"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := do(t, s, req)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "webhook")

	select {
	case msg := <-svc.Responses():
		if msg.From != "15551234567" || msg.Body != "hello" {
			t.Errorf("unexpected inbound message: %+v", msg)
		}
	default:
		t.Fatal("expected inbound message")
	}
}

func TestSendMessageHandler_RestoredSubmissionReportsFailure(t *testing.T) {
	s, deps := newTestServer(t)
	view := startSession(t, s)

	ctx := context.Background()
	snap, err := deps.Store.GetSession(ctx, view.SessionID)
	if err != nil || snap == nil {
		t.Fatalf("GetSession: %v", err)
	}
	snap.State = models.SessionStateSubmitting
	snap.StepIndex = len(flow.DefaultScript().Steps) - 1
	if err := deps.Store.SaveSession(ctx, *snap); err != nil {
		t.Fatal(err)
	}

	rr := sendText(t, s, view.SessionID, "hello?")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "restored session")
	var turn models.ChatTurnView
	testutil.DecodeResult(t, rr, &turn)
	script := flow.DefaultScript()
	if !turn.SubmissionFailed || len(turn.Messages) != 1 || turn.Messages[0].Text != script.Message(script.FailureMessage) {
		t.Errorf("unexpected turn: %+v", turn)
	}
}
