package api

import (
	"log/slog"
	"net/http"

	"github.com/BTreeMap/LeadPipe/internal/collector"
	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/messaging"
	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Server holds the HTTP handlers and the services behind them.
type Server struct {
	sessions  *flow.SessionManager
	collector *collector.Handler
	twilio    *messaging.TwilioService // nil when Twilio is not configured
	mux       *http.ServeMux
}

// NewServer creates a Server. twilio may be nil.
func NewServer(sessions *flow.SessionManager, collectorHandler *collector.Handler, twilio *messaging.TwilioService) *Server {
	s := &Server{
		sessions:  sessions,
		collector: collectorHandler,
		twilio:    twilio,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/contact", s.collector)
	s.mux.HandleFunc("/contact/schema", s.collector.SchemaHandler)

	s.mux.HandleFunc("POST /chat/sessions", s.startSessionHandler)
	s.mux.HandleFunc("GET /chat/sessions/{id}", s.getSessionHandler)
	s.mux.HandleFunc("POST /chat/sessions/{id}/messages", s.sendMessageHandler)
	s.mux.HandleFunc("DELETE /chat/sessions/{id}", s.endSessionHandler)

	if s.twilio != nil {
		s.mux.HandleFunc("/twilio/webhook", s.twilio.WebhookHandler)
		slog.Debug("Server.routes: Twilio webhook enabled")
	}
	s.mux.HandleFunc("GET /healthz", s.healthHandler)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}
