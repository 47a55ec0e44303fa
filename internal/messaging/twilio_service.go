package messaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/twiliomsg"
	"github.com/twilio/twilio-go/client"
)

const (
	// TwilioSignatureHeader carries the request signature on Twilio webhooks
	TwilioSignatureHeader = "X-Twilio-Signature"
	// emptyTwiML acknowledges a webhook without sending an automatic reply
	emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

// TwilioOption configures a TwilioService.
type TwilioOption func(*TwilioService)

// WithSignatureValidation rejects webhook requests whose X-Twilio-Signature does not match
// authToken. publicURL is the webhook URL exactly as configured in the Twilio console.
func WithSignatureValidation(authToken, publicURL string) TwilioOption {
	return func(s *TwilioService) {
		v := client.NewRequestValidator(authToken)
		s.validator = &v
		s.publicURL = publicURL
	}
}

// TwilioService implements Service over the Twilio REST API and its inbound webhook.
type TwilioService struct {
	client    twiliomsg.Sender
	inbox     *inbox
	validator *client.RequestValidator
	publicURL string
}

// NewTwilioService creates a TwilioService sending through client.
func NewTwilioService(sender twiliomsg.Sender, opts ...TwilioOption) *TwilioService {
	s := &TwilioService{client: sender, inbox: newInbox()}
	for _, opt := range opts {
		opt(s)
	}
	slog.Debug("TwilioService created", "signature_validation", s.validator != nil)
	return s
}

// ValidateAndCanonicalizeRecipient returns the digits-only form of a phone number.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical, err := CanonicalizePhone(strings.TrimPrefix(recipient, twiliomsg.WhatsAppPrefix))
	if err != nil {
		return "", err
	}
	if canonical != recipient {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start is a no-op; inbound messages arrive through WebhookHandler.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the Responses channel. It is safe to call more than once.
func (s *TwilioService) Stop() error {
	s.inbox.close()
	slog.Info("TwilioService stopped")
	return nil
}

// SendMessage sends a message via Twilio.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("TwilioService SendMessage failed", "error", err, "to", canonicalTo)
		return err
	}
	slog.Debug("TwilioService message sent", "to", canonicalTo, "body_length", len(body))
	return nil
}

// Responses returns the channel of inbound messages received by the webhook.
func (s *TwilioService) Responses() <-chan models.InboundMessage {
	return s.inbox.ch
}

// WebhookHandler accepts Twilio's inbound message webhook (form-encoded From and Body) and
// acknowledges with empty TwiML. Replies are sent asynchronously through the REST API.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Error("TwilioService.WebhookHandler: failed to parse form", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !s.validSignature(r) {
		slog.Warn("TwilioService.WebhookHandler: signature mismatch", "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	from := r.PostForm.Get("From")
	body := r.PostForm.Get("Body")
	if from == "" {
		slog.Warn("TwilioService.WebhookHandler: missing From")
		http.Error(w, "missing From", http.StatusBadRequest)
		return
	}
	canonicalFrom, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Warn("TwilioService.WebhookHandler: invalid sender", "from", from, "error", err)
		http.Error(w, "invalid From", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(body) == "" {
		// media-only messages carry no text for the chatbot
		slog.Debug("TwilioService.WebhookHandler: ignoring message without text", "from", canonicalFrom)
	} else {
		slog.Info("TwilioService.WebhookHandler: inbound message", "from", canonicalFrom, "body_length", len(body))
		s.inbox.emit(models.InboundMessage{From: canonicalFrom, Body: body, Time: time.Now().Unix()})
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, emptyTwiML); err != nil {
		slog.Error("TwilioService.WebhookHandler: failed to write response", "error", err)
	}
}

func (s *TwilioService) validSignature(r *http.Request) bool {
	if s.validator == nil {
		return true
	}
	params := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		params[k] = r.PostForm.Get(k)
	}
	url := s.publicURL
	if url == "" {
		url = fmt.Sprintf("https://%s%s", r.Host, r.URL.RequestURI())
	}
	return s.validator.Validate(url, params, r.Header.Get(TwilioSignatureHeader))
}
