package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/models"
)

const (
	// messageSeparator joins the bot messages of one turn into a single outbound text
	messageSeparator = "\n\n"

	emptyAnswerHint   = "Sorry, I didn't get an answer there."
	unknownOptionHint = "Sorry, I couldn't match that to one of the options. Reply with a number from the list."
	tooLongHint       = "Sorry, that answer is too long. Please send a shorter one."
	restartHint       = "Reply RESTART to start a new one."
)

// restartCommands start a fresh session regardless of the current state.
var restartCommands = []string{"restart", "start over"}

// ChatRouter feeds the inbound messages of one Service through the session manager
// and sends the bot replies back on the same channel.
type ChatRouter struct {
	svc      Service
	sessions *flow.SessionManager
	channel  string
}

// NewChatRouter creates a router for svc. channel names the sessions it creates (e.g. "sms").
func NewChatRouter(svc Service, sessions *flow.SessionManager, channel string) *ChatRouter {
	return &ChatRouter{svc: svc, sessions: sessions, channel: channel}
}

// SessionID returns the session identifier used for a sender on this router's channel.
func (r *ChatRouter) SessionID(from string) string {
	return r.channel + ":" + from
}

// Run handles inbound messages until ctx is cancelled or the Responses channel closes.
func (r *ChatRouter) Run(ctx context.Context) error {
	slog.Info("ChatRouter.Run: started", "channel", r.channel)
	for {
		select {
		case <-ctx.Done():
			slog.Info("ChatRouter.Run: context done", "channel", r.channel)
			return ctx.Err()
		case msg, ok := <-r.svc.Responses():
			if !ok {
				slog.Info("ChatRouter.Run: responses channel closed", "channel", r.channel)
				return nil
			}
			if err := r.HandleMessage(ctx, msg); err != nil {
				slog.Error("ChatRouter.Run: failed to handle message", "channel", r.channel, "from", msg.From, "error", err)
			}
		}
	}
}

// HandleMessage advances the sender's session by one message and sends the reply.
func (r *ChatRouter) HandleMessage(ctx context.Context, msg models.InboundMessage) error {
	from, err := r.svc.ValidateAndCanonicalizeRecipient(msg.From)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	reply, err := r.reply(ctx, r.SessionID(from), msg.Body)
	if err != nil {
		return err
	}
	return r.svc.SendMessage(ctx, from, reply)
}

func (r *ChatRouter) reply(ctx context.Context, id, body string) (string, error) {
	if isRestart(body) {
		if err := r.sessions.End(ctx, id); err != nil {
			return "", err
		}
		return r.start(ctx, id)
	}

	snap, err := r.sessions.Get(ctx, id)
	if errors.Is(err, flow.ErrSessionNotFound) {
		return r.start(ctx, id)
	}
	if err != nil {
		return "", err
	}

	turn, err := r.sessions.Handle(ctx, id, body)
	switch {
	case err == nil:
		return renderMessages(turn.Messages), nil
	case errors.Is(err, flow.ErrSessionClosed):
		return r.sessions.Script().ClosedMessage + " " + restartHint, nil
	case errors.Is(err, flow.ErrEmptyAnswer):
		return retry(emptyAnswerHint, snap), nil
	case errors.Is(err, flow.ErrUnknownOption):
		return retry(unknownOptionHint, snap), nil
	case errors.Is(err, flow.ErrAnswerTooLong):
		return retry(tooLongHint, snap), nil
	case errors.Is(err, flow.ErrSessionNotFound):
		return r.start(ctx, id)
	default:
		return "", err
	}
}

func (r *ChatRouter) start(ctx context.Context, id string) (string, error) {
	snap, err := r.sessions.Start(ctx, id, r.channel)
	if err != nil {
		return "", err
	}
	return renderMessages(snap.Transcript), nil
}

func isRestart(body string) bool {
	text := strings.ToLower(strings.TrimSpace(body))
	for _, cmd := range restartCommands {
		if text == cmd {
			return true
		}
	}
	return false
}

// retry repeats the last bot prompt after hint.
func retry(hint string, snap models.ChatSession) string {
	for i := len(snap.Transcript) - 1; i >= 0; i-- {
		if snap.Transcript[i].Role == models.RoleBot {
			return hint + messageSeparator + flow.RenderText(snap.Transcript[i])
		}
	}
	return hint
}

func renderMessages(msgs []models.TranscriptMessage) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == models.RoleBot {
			parts = append(parts, flow.RenderText(m))
		}
	}
	return strings.Join(parts, messageSeparator)
}
