// filepath: internal/flow/render.go
package flow

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Option formatting constants for text-only channels
const (
	// OptionFormat is the format string for a numbered option line
	OptionFormat = "\n%d. %s"
	// ConsentHint is appended to consent prompts on text-only channels
	ConsentHint = "\nReply YES to agree or NO to decline."
)

// Renderer turns a bot transcript message into plain channel text.
type Renderer interface {
	Render(msg models.TranscriptMessage) string
}

var (
	registryMu sync.RWMutex
	registry   = make(map[models.InputKind]Renderer)
)

// RegisterRenderer associates an InputKind with a Renderer implementation.
func RegisterRenderer(kind models.InputKind, r Renderer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = r
}

// GetRenderer retrieves the Renderer for a given InputKind.
func GetRenderer(kind models.InputKind) (Renderer, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[kind]
	return r, ok
}

// RenderText renders msg with the renderer registered for its kind, falling back to the raw text.
func RenderText(msg models.TranscriptMessage) string {
	if r, ok := GetRenderer(msg.Kind); ok {
		return r.Render(msg)
	}
	if msg.Kind != "" {
		slog.Debug("No renderer registered for input kind", "kind", msg.Kind)
	}
	return msg.Text
}

// TextRenderer returns the message text as-is.
type TextRenderer struct{}

// Render returns the plain text of the message.
func (TextRenderer) Render(msg models.TranscriptMessage) string {
	return msg.Text
}

// ChoiceRenderer lists the options as a numbered menu so they can be answered by number.
type ChoiceRenderer struct{}

// Render returns the text followed by the numbered options.
func (ChoiceRenderer) Render(msg models.TranscriptMessage) string {
	var sb strings.Builder
	sb.WriteString(msg.Text)
	for i, opt := range msg.Options {
		fmt.Fprintf(&sb, OptionFormat, i+1, opt)
	}
	return sb.String()
}

// ConsentRenderer appends a yes/no hint.
type ConsentRenderer struct{}

// Render returns the text followed by the consent hint.
func (ConsentRenderer) Render(msg models.TranscriptMessage) string {
	return msg.Text + ConsentHint
}

// Register default renderers
func init() {
	RegisterRenderer(models.InputKindText, TextRenderer{})
	RegisterRenderer(models.InputKindTextArea, TextRenderer{})
	RegisterRenderer(models.InputKindSelect, ChoiceRenderer{})
	RegisterRenderer(models.InputKindConsent, ConsentRenderer{})
}
