// Package models defines chat session structures for LeadPipe flows.
package models

import "time"

// SessionState represents where a chat session is in the scripted flow.
type SessionState string

const (
	// SessionStateAwaitingStep waits for an answer to the current step.
	SessionStateAwaitingStep SessionState = "awaiting_step"
	// SessionStateSubmitting is held while the submission is in flight.
	SessionStateSubmitting SessionState = "submitting"
	// SessionStateCompleted is terminal; the submission was attempted.
	SessionStateCompleted SessionState = "completed"
	// SessionStateDeclined is terminal; the submitter declined consent.
	SessionStateDeclined SessionState = "declined"
)

// IsTerminal reports whether no further input is accepted in this state.
func (s SessionState) IsTerminal() bool {
	return s == SessionStateCompleted || s == SessionStateDeclined
}

// Role identifies the author of a transcript message.
type Role string

const (
	RoleBot  Role = "bot"
	RoleUser Role = "user"
)

// TranscriptMessage is one entry of the display-only conversation log.
type TranscriptMessage struct {
	Role    Role      `json:"role"`
	Text    string    `json:"text"`
	Kind    InputKind `json:"kind,omitempty"`    // input kind of the prompt this message asks for
	Options []string  `json:"options,omitempty"` // discrete choices for select and consent prompts
	Time    time.Time `json:"time"`
}

// ChatSession is a persisted snapshot of one scripted conversation.
type ChatSession struct {
	ID         string              `json:"id"`
	Channel    string              `json:"channel"`
	State      SessionState        `json:"state"`
	StepIndex  int                 `json:"step_index"`
	Answers    map[Field]string    `json:"answers,omitempty"`
	Transcript []TranscriptMessage `json:"transcript"`
	ContactID  string              `json:"contact_id,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// ChatMessageRequest is the body of a web chat turn.
type ChatMessageRequest struct {
	Text string `json:"text"`
}

// ChatSessionView is the client-facing view of a session. Answers stay server-side.
type ChatSessionView struct {
	SessionID  string              `json:"session_id"`
	State      SessionState        `json:"state"`
	Transcript []TranscriptMessage `json:"transcript"`
}

// View returns the client-facing view of the session.
func (s ChatSession) View() ChatSessionView {
	return ChatSessionView{SessionID: s.ID, State: s.State, Transcript: s.Transcript}
}

// ChatTurnView is the result of one web chat turn.
type ChatTurnView struct {
	SessionID        string              `json:"session_id"`
	State            SessionState        `json:"state"`
	Messages         []TranscriptMessage `json:"messages"`
	SubmissionFailed bool                `json:"submission_failed,omitempty"`
	ContactID        string              `json:"contact_id,omitempty"`
}
