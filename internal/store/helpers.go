package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/google/uuid"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func newContactID() string {
	return uuid.NewString()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const contactColumns = `id, name, email, phone, company_name, industry, message, consent, created_at`

func scanContact(row rowScanner) (models.Contact, error) {
	var c models.Contact
	var phone, company, industry sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.Email, &phone, &company, &industry, &c.Message, &c.Consent, &c.CreatedAt)
	if err != nil {
		return c, err
	}
	c.Phone = phone.String
	c.CompanyName = company.String
	c.Industry = industry.String
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

const sessionColumns = `id, channel, state, step_index, answers, transcript, contact_id, created_at, updated_at`

// encodeSessionData marshals the answers and transcript of a session into JSON column values.
func encodeSessionData(session models.ChatSession) (string, string, error) {
	answers := session.Answers
	if answers == nil {
		answers = map[models.Field]string{}
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal session answers: %w", err)
	}
	transcript := session.Transcript
	if transcript == nil {
		transcript = []models.TranscriptMessage{}
	}
	transcriptJSON, err := json.Marshal(transcript)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal session transcript: %w", err)
	}
	return string(answersJSON), string(transcriptJSON), nil
}

func scanSession(row rowScanner) (models.ChatSession, error) {
	var s models.ChatSession
	var answersJSON, transcriptJSON []byte
	var contactID sql.NullString
	err := row.Scan(&s.ID, &s.Channel, &s.State, &s.StepIndex, &answersJSON, &transcriptJSON, &contactID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return s, err
	}
	s.ContactID = contactID.String
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	if len(answersJSON) > 0 {
		if err := json.Unmarshal(answersJSON, &s.Answers); err != nil {
			return s, fmt.Errorf("failed to unmarshal session answers: %w", err)
		}
	}
	if len(transcriptJSON) > 0 {
		if err := json.Unmarshal(transcriptJSON, &s.Transcript); err != nil {
			return s, fmt.Errorf("failed to unmarshal session transcript: %w", err)
		}
	}
	return s, nil
}
