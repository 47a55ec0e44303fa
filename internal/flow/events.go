package flow

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Notifier receives flow events. Implementations decide what to do with them
// (analytics sinks, logs); they must not block for long.
type Notifier interface {
	StepCompleted(ctx context.Context, sessionID string, field models.Field)
	Declined(ctx context.Context, sessionID string)
	SubmissionSucceeded(ctx context.Context, sessionID string, contact models.Contact)
	SubmissionFailed(ctx context.Context, sessionID string, err error)
}

// NopNotifier ignores every event.
type NopNotifier struct{}

func (NopNotifier) StepCompleted(context.Context, string, models.Field) {}
func (NopNotifier) Declined(context.Context, string) {}
func (NopNotifier) SubmissionSucceeded(context.Context, string, models.Contact) {}
func (NopNotifier) SubmissionFailed(context.Context, string, error) {}

// LogNotifier writes flow events to the structured log.
type LogNotifier struct{}

func (LogNotifier) StepCompleted(_ context.Context, sessionID string, field models.Field) {
	slog.Debug("Flow step completed", "sessionID", sessionID, "field", field)
}

func (LogNotifier) Declined(_ context.Context, sessionID string) {
	slog.Info("Flow declined", "sessionID", sessionID)
}

func (LogNotifier) SubmissionSucceeded(_ context.Context, sessionID string, contact models.Contact) {
	slog.Info("Flow submission succeeded", "sessionID", sessionID, "contactID", contact.ID)
}

func (LogNotifier) SubmissionFailed(_ context.Context, sessionID string, err error) {
	slog.Error("Flow submission failed", "sessionID", sessionID, "error", err)
}

// MultiNotifier fans every event out to each notifier in order.
type MultiNotifier []Notifier

func (m MultiNotifier) StepCompleted(ctx context.Context, sessionID string, field models.Field) {
	for _, n := range m {
		n.StepCompleted(ctx, sessionID, field)
	}
}

func (m MultiNotifier) Declined(ctx context.Context, sessionID string) {
	for _, n := range m {
		n.Declined(ctx, sessionID)
	}
}

func (m MultiNotifier) SubmissionSucceeded(ctx context.Context, sessionID string, contact models.Contact) {
	for _, n := range m {
		n.SubmissionSucceeded(ctx, sessionID, contact)
	}
}

func (m MultiNotifier) SubmissionFailed(ctx context.Context, sessionID string, err error) {
	for _, n := range m {
		n.SubmissionFailed(ctx, sessionID, err)
	}
}
