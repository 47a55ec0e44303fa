package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppService implements Service over a linked whatsmeow device.
type WhatsAppService struct {
	client   whatsapp.Sender
	waClient *whatsapp.Client // nil for mocks; needed for event handling
	inbox    *inbox

	mu        sync.Mutex
	handlerID uint32
	listening bool
}

// NewWhatsAppService creates a WhatsAppService wrapping client.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	s := &WhatsAppService{client: client, inbox: newInbox()}
	if waClient, ok := client.(*whatsapp.Client); ok {
		s.waClient = waClient
	}
	slog.Debug("WhatsAppService created", "event_handling", s.waClient != nil)
	return s
}

// ValidateAndCanonicalizeRecipient returns the digits-only form of a phone number.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// Start registers the inbound message handler on the underlying client.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsAppService.Start: no live client, inbound events disabled")
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listening {
		return nil
	}
	s.handlerID = s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(msg)
		}
	})
	s.listening = true
	slog.Info("WhatsAppService.Start: event handler registered")
	return nil
}

// Stop removes the event handler and closes the Responses channel. It is safe to call more than once.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	if s.listening {
		s.waClient.GetClient().RemoveEventHandler(s.handlerID)
		s.listening = false
	}
	s.mu.Unlock()
	s.inbox.close()
	slog.Info("WhatsAppService stopped")
	return nil
}

// SendMessage sends a text message to recipient.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", canonicalTo)
		return err
	}
	return nil
}

// Responses returns the channel of inbound messages.
func (s *WhatsAppService) Responses() <-chan models.InboundMessage {
	return s.inbox.ch
}

// handleIncomingMessage forwards direct text messages from other users.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt == nil || evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}

	var text string
	switch {
	case evt.Message.Conversation != nil:
		text = evt.Message.GetConversation()
	case evt.Message.ExtendedTextMessage != nil:
		text = evt.Message.GetExtendedTextMessage().GetText()
	}
	if text == "" {
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.User)
		return
	}

	ts := evt.Info.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	s.inbox.emit(models.InboundMessage{From: evt.Info.Sender.User, Body: text, Time: ts.Unix()})
}
