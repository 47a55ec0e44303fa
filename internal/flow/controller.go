package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/util"
)

// Controller errors
var (
	ErrSessionClosed     = errors.New("session is closed")
	ErrIncompleteAnswers = errors.New("required answer missing")
	ErrInvalidSnapshot   = errors.New("invalid session snapshot")
)

// requiredFields must be non-empty before a submission is attempted.
var requiredFields = []models.Field{models.FieldName, models.FieldEmail, models.FieldMessage}

// Turn is the outcome of one accepted answer.
type Turn struct {
	Messages         []models.TranscriptMessage `json:"messages"` // bot messages produced by this turn
	State            models.SessionState        `json:"state"`
	SubmissionFailed bool                       `json:"submission_failed,omitempty"`
	Contact          *models.Contact            `json:"contact,omitempty"`
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithSessionID sets the session identifier reported to the notifier and in snapshots.
func WithSessionID(id string) ControllerOption {
	return func(c *Controller) { c.id = id }
}

// WithChannel records which channel the session runs on.
func WithChannel(channel string) ControllerOption {
	return func(c *Controller) { c.channel = channel }
}

// WithNotifier sets the event notifier.
func WithNotifier(n Notifier) ControllerOption {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithClassifier sets the fallback classifier for select steps.
func WithClassifier(cl IndustryClassifier) ControllerOption {
	return func(c *Controller) { c.classifier = cl }
}

// WithClock overrides the time source used for transcript timestamps.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller walks one session through the scripted steps.
// States: awaiting_step(i) -> ... -> submitting -> completed, or declined at the consent step.
type Controller struct {
	mu sync.Mutex

	id         string
	channel    string
	script     Script
	submitter  Submitter
	notifier   Notifier
	classifier IndustryClassifier
	now        func() time.Time

	state      models.SessionState
	step       int
	answers    map[models.Field]string
	transcript []models.TranscriptMessage
	contactID  string
	createdAt  time.Time
	updatedAt  time.Time
}

func newController(script Script, submitter Submitter, opts []ControllerOption) *Controller {
	c := &Controller{
		script:    script,
		submitter: submitter,
		notifier:  NopNotifier{},
		now:       time.Now,
		answers:   make(map[models.Field]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = util.GenerateSessionID()
	}
	return c
}

// NewController starts a session at the first step. The transcript opens with the
// greeting followed by the first prompt.
func NewController(script Script, submitter Submitter, opts ...ControllerOption) *Controller {
	c := newController(script, submitter, opts)
	c.state = models.SessionStateAwaitingStep
	c.createdAt = c.now()
	c.updatedAt = c.createdAt
	if strings.TrimSpace(script.Greeting) != "" {
		c.appendBot(script.Greeting, "", nil)
	}
	c.appendPrompt(0)
	slog.Debug("Controller created", "sessionID", c.id, "channel", c.channel, "steps", len(script.Steps))
	return c
}

// RestoreController rebuilds a controller from a persisted snapshot. A session that was
// persisted mid-submission is closed with the failure message, since the outcome is unknown.
func RestoreController(script Script, submitter Submitter, snap models.ChatSession, opts ...ControllerOption) (*Controller, error) {
	if snap.StepIndex < 0 || snap.StepIndex >= len(script.Steps) {
		return nil, fmt.Errorf("%w: step index %d out of range", ErrInvalidSnapshot, snap.StepIndex)
	}
	switch snap.State {
	case models.SessionStateAwaitingStep, models.SessionStateSubmitting, models.SessionStateCompleted, models.SessionStateDeclined:
	default:
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidSnapshot, snap.State)
	}

	c := newController(script, submitter, append([]ControllerOption{WithSessionID(snap.ID), WithChannel(snap.Channel)}, opts...))
	c.state = snap.State
	c.step = snap.StepIndex
	for k, v := range snap.Answers {
		c.answers[k] = v
	}
	c.transcript = append(c.transcript, snap.Transcript...)
	c.contactID = snap.ContactID
	c.createdAt = snap.CreatedAt
	c.updatedAt = snap.UpdatedAt

	if c.state == models.SessionStateSubmitting {
		slog.Warn("Controller restored mid-submission, closing session", "sessionID", c.id)
		c.state = models.SessionStateCompleted
		c.appendBot(c.script.Message(c.script.FailureMessage), "", nil)
	}
	return c, nil
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.id
}

// State returns the current session state.
func (c *Controller) State() models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentStep returns the step awaiting an answer, or false once the session is past the steps.
func (c *Controller) CurrentStep() (models.Step, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != models.SessionStateAwaitingStep {
		return models.Step{}, false
	}
	return c.script.Steps[c.step], true
}

// Transcript returns a copy of the conversation so far.
func (c *Controller) Transcript() []models.TranscriptMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.TranscriptMessage(nil), c.transcript...)
}

// Snapshot returns the persistable state of the session.
func (c *Controller) Snapshot() models.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	answers := make(map[models.Field]string, len(c.answers))
	for k, v := range c.answers {
		answers[k] = v
	}
	return models.ChatSession{
		ID:         c.id,
		Channel:    c.channel,
		State:      c.state,
		StepIndex:  c.step,
		Answers:    answers,
		Transcript: append([]models.TranscriptMessage(nil), c.transcript...),
		ContactID:  c.contactID,
		CreatedAt:  c.createdAt,
		UpdatedAt:  c.updatedAt,
	}
}

// Handle applies one user answer. A rejected answer returns ErrEmptyAnswer, ErrUnknownOption
// or ErrAnswerTooLong and leaves the session untouched; terminal sessions return ErrSessionClosed.
// Submission failures are not returned as errors: they close the session with the failure
// message and set Turn.SubmissionFailed.
func (c *Controller) Handle(ctx context.Context, input string) (Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsTerminal() {
		return Turn{State: c.state}, ErrSessionClosed
	}

	step := c.script.Steps[c.step]
	value, err := normalizeAnswer(ctx, step, input, c.classifier)
	if err != nil {
		slog.Debug("Controller.Handle: answer rejected", "sessionID", c.id, "field", step.Field, "error", err)
		return Turn{State: c.state}, err
	}

	mark := len(c.transcript)
	c.appendUser(input)
	c.answers[step.Field] = value
	c.notifier.StepCompleted(ctx, c.id, step.Field)

	turn := Turn{}
	switch {
	case step.Kind == models.InputKindConsent && value != "true":
		c.state = models.SessionStateDeclined
		c.appendBot(c.script.Message(c.script.DeclineMessage), "", nil)
		c.notifier.Declined(ctx, c.id)
		slog.Info("Controller.Handle: consent declined", "sessionID", c.id)
	case c.step == len(c.script.Steps)-1:
		contact, err := c.submit(ctx)
		if err != nil {
			turn.SubmissionFailed = true
		} else {
			turn.Contact = &contact
		}
	default:
		c.step++
		c.appendPrompt(c.step)
	}

	turn.State = c.state
	for _, msg := range c.transcript[mark:] {
		if msg.Role == models.RoleBot {
			turn.Messages = append(turn.Messages, msg)
		}
	}
	return turn, nil
}

// submit freezes the answers into a Submission and sends it exactly once.
func (c *Controller) submit(ctx context.Context) (models.Contact, error) {
	c.state = models.SessionStateSubmitting
	sub := c.buildSubmission()

	var contact models.Contact
	err := checkRequired(sub)
	if err == nil {
		slog.Debug("Controller.submit: submitting", "sessionID", c.id)
		contact, err = c.submitter.Submit(ctx, sub)
	}
	c.state = models.SessionStateCompleted

	if err != nil {
		c.appendBot(c.script.Message(c.script.FailureMessage), "", nil)
		c.notifier.SubmissionFailed(ctx, c.id, err)
		slog.Error("Controller.submit: submission failed", "sessionID", c.id, "error", err)
		return models.Contact{}, err
	}

	c.contactID = contact.ID
	c.appendBot(c.script.Message(c.script.SuccessMessage), "", nil)
	c.notifier.SubmissionSucceeded(ctx, c.id, contact)
	slog.Info("Controller.submit: submission stored", "sessionID", c.id, "contactID", contact.ID)
	return contact, nil
}

func (c *Controller) buildSubmission() models.Submission {
	return models.Submission{
		Name:        c.answers[models.FieldName],
		Email:       c.answers[models.FieldEmail],
		Phone:       c.answers[models.FieldPhone],
		CompanyName: c.answers[models.FieldCompanyName],
		Industry:    c.answers[models.FieldIndustry],
		Message:     c.answers[models.FieldMessage],
		Consent:     c.answers[models.FieldConsent] == "true",
	}
}

func checkRequired(sub models.Submission) error {
	values := map[models.Field]string{
		models.FieldName:    sub.Name,
		models.FieldEmail:   sub.Email,
		models.FieldMessage: sub.Message,
	}
	for _, f := range requiredFields {
		if strings.TrimSpace(values[f]) == "" {
			return fmt.Errorf("%w: %s", ErrIncompleteAnswers, f)
		}
	}
	if !sub.Consent {
		return fmt.Errorf("%w: %s", ErrIncompleteAnswers, models.FieldConsent)
	}
	return nil
}

func (c *Controller) appendPrompt(i int) {
	step := c.script.Steps[i]
	c.appendBot(step.Prompt, step.Kind, step.Options)
}

func (c *Controller) appendBot(text string, kind models.InputKind, options []string) {
	now := c.now()
	c.transcript = append(c.transcript, models.TranscriptMessage{
		Role:    models.RoleBot,
		Text:    text,
		Kind:    kind,
		Options: append([]string(nil), options...),
		Time:    now,
	})
	c.updatedAt = now
}

func (c *Controller) appendUser(text string) {
	now := c.now()
	c.transcript = append(c.transcript, models.TranscriptMessage{
		Role: models.RoleUser,
		Text: text,
		Time: now,
	})
	c.updatedAt = now
}
