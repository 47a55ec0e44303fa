// Package messaging connects text channels (Twilio SMS/WhatsApp, linked WhatsApp devices)
// to the scripted chatbot.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

const (
	// DefaultChannelBufferSize is the buffer size of the inbound message channel
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds how long an inbound message may wait for a reader
	DefaultChannelTimeout = 1 * time.Second
	// MinPhoneDigits is the shortest accepted phone number
	MinPhoneDigits = 6
)

// ErrServiceStopped is returned when sending through a stopped service.
var ErrServiceStopped = errors.New("messaging service stopped")

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`\D`)

// Service is a two-way text channel.
type Service interface {
	// ValidateAndCanonicalizeRecipient returns the digits-only form of a phone number.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing.
	Start(ctx context.Context) error

	// Stop stops background processing and closes the Responses channel.
	Stop() error

	// Responses returns the channel of inbound messages.
	Responses() <-chan models.InboundMessage
}

// CanonicalizePhone strips every non-digit from recipient and checks the result is long enough.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinPhoneDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, MinPhoneDigits)
	}
	return canonical, nil
}

// inbox is a closable inbound channel that never panics on send after close.
type inbox struct {
	mu      sync.RWMutex
	ch      chan models.InboundMessage
	stopped bool
}

func newInbox() *inbox {
	return &inbox{ch: make(chan models.InboundMessage, DefaultChannelBufferSize)}
}

// emit delivers msg, dropping it when the service is stopped or nobody reads in time.
func (b *inbox) emit(msg models.InboundMessage) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		slog.Warn("Dropping inbound message, service stopped", "from", msg.From)
		return false
	}

	timer := time.NewTimer(DefaultChannelTimeout)
	defer timer.Stop()
	select {
	case b.ch <- msg:
		return true
	case <-timer.C:
		slog.Warn("Inbound channel blocked, dropping message", "from", msg.From)
		return false
	}
}

// close marks the inbox stopped and closes the channel once.
func (b *inbox) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	close(b.ch)
}

func (b *inbox) isStopped() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stopped
}
