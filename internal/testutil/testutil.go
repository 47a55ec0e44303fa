// Package testutil provides shared fixtures and assertions for LeadPipe HTTP tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BTreeMap/LeadPipe/internal/collector"
	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/mailer"
	"github.com/BTreeMap/LeadPipe/internal/store"
)

// Deps bundles in-memory dependencies for handler tests.
type Deps struct {
	Store     *store.InMemoryStore
	Mailer    *mailer.MockMailer
	Collector *collector.Service
	Handler   *collector.Handler
	Sessions  *flow.SessionManager
}

// NewDeps builds an in-memory store, a recording mailer, the collector and a session manager
// running the default script. The session manager is closed when the test ends.
func NewDeps(t *testing.T) *Deps {
	t.Helper()
	d := &Deps{Store: store.NewInMemoryStore(), Mailer: &mailer.MockMailer{}}
	d.Collector = collector.NewService(d.Store, d.Mailer, mailer.Brand{Name: "LeadPipe", SupportEmail: flow.DefaultSupportEmail})

	schema, err := collector.NewSubmissionSchema()
	if err != nil {
		t.Fatalf("failed to build submission schema: %v", err)
	}
	d.Handler = collector.NewHandler(d.Collector, schema)
	d.Sessions = flow.NewSessionManager(d.Store, flow.DefaultScript(), d.Collector)
	t.Cleanup(d.Sessions.Close)
	return d
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes an APIResponse body and checks its status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	status, ok := response["status"].(string)
	if !ok {
		t.Error("response missing or invalid 'status' field")
	} else if status != expectedStatus {
		t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
	}
	return response
}

// DecodeResult decodes the "result" field of an APIResponse body into target.
func DecodeResult(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if err := json.Unmarshal(envelope.Result, target); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
}

// CreateHTTPRequest creates a request with body marshaled as JSON, or no body when nil.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}
