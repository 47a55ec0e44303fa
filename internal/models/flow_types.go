// Package models defines step definitions to avoid circular imports.
package models

// InputKind describes how a step expects to be answered.
type InputKind string

const (
	// InputKindText is a single-line answer.
	InputKindText InputKind = "text"
	// InputKindTextArea is a free-text answer.
	InputKindTextArea InputKind = "textarea"
	// InputKindSelect is a single choice from a fixed list.
	InputKindSelect InputKind = "select"
	// InputKindConsent is a yes/no consent answer.
	InputKindConsent InputKind = "consent"
)

// Step is one question of the fixed chatbot sequence.
type Step struct {
	Field    Field     `json:"field" yaml:"field"`
	Prompt   string    `json:"prompt" yaml:"prompt"`
	Kind     InputKind `json:"kind" yaml:"kind"`
	Optional bool      `json:"optional,omitempty" yaml:"optional,omitempty"`
	Options  []string  `json:"options,omitempty" yaml:"options,omitempty"`
}
