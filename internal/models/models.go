// Package models defines the core data structures for LeadPipe.
//
// It includes the contact submission, the stored contact record and the API envelopes,
// which are shared across modules.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Field names a value collected by the contact chatbot.
type Field string

const (
	FieldName        Field = "name"
	FieldEmail       Field = "email"
	FieldPhone       Field = "phone"
	FieldCompanyName Field = "company_name"
	FieldIndustry    Field = "industry"
	FieldMessage     Field = "message"
	FieldConsent     Field = "consent"
)

// Validation constants for contact submissions
const (
	// MaxNameLength defines the maximum allowed length for the submitter name
	MaxNameLength = 200
	// MaxEmailLength defines the maximum allowed length for an e-mail address
	MaxEmailLength = 320
	// MaxPhoneLength defines the maximum allowed length for a phone number
	MaxPhoneLength = 50
	// MaxCompanyNameLength defines the maximum allowed length for the company name
	MaxCompanyNameLength = 200
	// MaxMessageLength defines the maximum allowed length for the free-text message
	MaxMessageLength = 5000
)

// Industries is the fixed list of categories a submitter can choose from.
var Industries = []string{
	"Healthcare",
	"Finance",
	"Retail",
	"Education",
	"Automotive",
	"Real Estate",
	"Gaming",
	"Technology",
	"Manufacturing",
	"Logistics",
	"Entertainment",
	"Other",
}

// Error variables for submission validation
var (
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrMissingName       = errors.New("name is required")
	ErrMissingEmail      = errors.New("email is required")
	ErrMissingMessage    = errors.New("message is required")
	ErrConsentRequired   = errors.New("consent is required")
	ErrUnknownIndustry   = errors.New("unknown industry")
	ErrFieldTooLong      = errors.New("field exceeds maximum length")
)

// maxFieldLengths caps free-text answers. The chatbot and the collector enforce the same limits.
var maxFieldLengths = map[Field]int{
	FieldName:        MaxNameLength,
	FieldEmail:       MaxEmailLength,
	FieldPhone:       MaxPhoneLength,
	FieldCompanyName: MaxCompanyNameLength,
	FieldMessage:     MaxMessageLength,
}

// MaxFieldLength returns the byte limit for a field's value, or false when it has none.
func MaxFieldLength(f Field) (int, bool) {
	n, ok := maxFieldLengths[f]
	return n, ok
}

// CanonicalIndustry returns the list spelling of an industry matched case-insensitively.
func CanonicalIndustry(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, industry := range Industries {
		if strings.EqualFold(industry, s) {
			return industry, true
		}
	}
	return "", false
}

// Submission is the finalized answer set sent to the collector.
// It is built by value once the scripted flow completes and is never mutated afterwards.
type Submission struct {
	Name        string `json:"name" jsonschema:"required,minLength=1,maxLength=200"`
	Email       string `json:"email" jsonschema:"required,minLength=1,maxLength=320"`
	Phone       string `json:"phone" jsonschema:"maxLength=50"`
	CompanyName string `json:"company_name" jsonschema:"maxLength=200"`
	Industry    string `json:"industry"`
	Message     string `json:"message" jsonschema:"required,minLength=1,maxLength=5000"`
	Consent     bool   `json:"consent" jsonschema:"required"`
}

// Validate checks the collector-side rules for a submission.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, ErrMissingName)
	}
	if strings.TrimSpace(s.Email) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, ErrMissingEmail)
	}
	if strings.TrimSpace(s.Message) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, ErrMissingMessage)
	}
	if !s.Consent {
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, ErrConsentRequired)
	}
	if s.Industry != "" {
		if _, ok := CanonicalIndustry(s.Industry); !ok {
			return fmt.Errorf("%w: %w: %q", ErrInvalidSubmission, ErrUnknownIndustry, s.Industry)
		}
	}

	values := []struct {
		field Field
		value string
	}{
		{FieldName, s.Name},
		{FieldEmail, s.Email},
		{FieldPhone, s.Phone},
		{FieldCompanyName, s.CompanyName},
		{FieldMessage, s.Message},
	}
	for _, v := range values {
		if limit, ok := MaxFieldLength(v.field); ok && len(v.value) > limit {
			return fmt.Errorf("%w: %w: %s", ErrInvalidSubmission, ErrFieldTooLong, v.field)
		}
	}
	return nil
}

// Contact is a stored submission with its generated identifier.
type Contact struct {
	ID string `json:"id"`
	Submission
	CreatedAt time.Time `json:"created_at"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// CollectorResponse is the success body of the contact collector endpoint.
type CollectorResponse struct {
	Success bool    `json:"success"`
	Data    Contact `json:"data"`
}

// CollectorError is the failure body of the contact collector endpoint.
type CollectorError struct {
	Error string `json:"error"`
}

// InboundMessage represents a chat message received from a messaging channel.
type InboundMessage struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}
