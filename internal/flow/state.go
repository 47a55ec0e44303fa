package flow

import (
	"context"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Submitter delivers a finalized submission to the collector.
type Submitter interface {
	Submit(ctx context.Context, sub models.Submission) (models.Contact, error)
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, sub models.Submission) (models.Contact, error)

// Submit calls f(ctx, sub).
func (f SubmitterFunc) Submit(ctx context.Context, sub models.Submission) (models.Contact, error) {
	return f(ctx, sub)
}

// IndustryClassifier maps free text to one of the offered options.
type IndustryClassifier interface {
	ClassifyIndustry(ctx context.Context, text string, options []string) (string, error)
}

// SessionStore persists chat session snapshots.
type SessionStore interface {
	// SaveSession inserts or replaces a session snapshot
	SaveSession(ctx context.Context, session models.ChatSession) error

	// GetSession returns nil without error when the session does not exist
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)

	// DeleteSession removes a session snapshot
	DeleteSession(ctx context.Context, id string) error

	// ListSessions returns every stored session
	ListSessions(ctx context.Context) ([]models.ChatSession, error)
}

// Timer defines the interface for scheduling delayed actions.
type Timer interface {
	// ScheduleAfter schedules a function to run after a delay and returns its ID
	ScheduleAfter(delay time.Duration, fn func()) (string, error)

	// Cancel cancels a scheduled function
	Cancel(id string) error

	// Stop cancels every pending function
	Stop()
}
