// Package flow implements the scripted contact chatbot.
//
// The question sequence is plain data (a Script); the Controller walks it one answer at a
// time and hands the finished Submission to a Submitter.
package flow

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultSupportEmail is the direct contact address named in terminal messages.
const DefaultSupportEmail = "hello@example.com"

// supportEmailPlaceholder is replaced with Script.SupportEmail in outgoing messages.
const supportEmailPlaceholder = "{support_email}"

// Script holds the ordered steps and the fixed bot messages of the chatbot.
type Script struct {
	Greeting       string
	Steps          []models.Step
	SuccessMessage string
	FailureMessage string
	DeclineMessage string
	ClosedMessage  string
	SupportEmail   string
}

// DefaultScript returns the standard contact sequence.
func DefaultScript() Script {
	return Script{
		Greeting: "Hi there! I can pass your details to our team so the right person gets back to you.",
		Steps: []models.Step{
			{Field: models.FieldName, Prompt: "What's your name?", Kind: models.InputKindText},
			{Field: models.FieldEmail, Prompt: "What's the best e-mail address to reach you?", Kind: models.InputKindText},
			{Field: models.FieldPhone, Prompt: "And a phone number?", Kind: models.InputKindText, Optional: true},
			{Field: models.FieldCompanyName, Prompt: "Which company are you with? Type \"skip\" if you'd rather not say.", Kind: models.InputKindText, Optional: true},
			{Field: models.FieldIndustry, Prompt: "Which industry best describes your business?", Kind: models.InputKindSelect, Options: append([]string(nil), models.Industries...)},
			{Field: models.FieldMessage, Prompt: "How can we help you?", Kind: models.InputKindTextArea},
			{Field: models.FieldConsent, Prompt: "Do you agree that we store these details and contact you about your request?", Kind: models.InputKindConsent, Options: []string{"Yes, I agree", "No thanks"}},
		},
		SuccessMessage: "Thanks! Your request has been sent and a confirmation e-mail is on its way. Our team will be in touch shortly.",
		FailureMessage: "Sorry, something went wrong while sending your request. Please e-mail us directly at " + supportEmailPlaceholder + ".",
		DeclineMessage: "No problem. We can't follow up without your consent, but you can always reach us directly at " + supportEmailPlaceholder + ".",
		ClosedMessage:  "This conversation has ended.",
		SupportEmail:   DefaultSupportEmail,
	}
}

// Message expands the support e-mail placeholder in tmpl.
func (s Script) Message(tmpl string) string {
	return strings.ReplaceAll(tmpl, supportEmailPlaceholder, s.SupportEmail)
}

// Validate checks that the script keeps the fixed field order ending in consent.
func (s Script) Validate() error {
	defaults := DefaultScript().Steps
	if len(s.Steps) != len(defaults) {
		return fmt.Errorf("script must have %d steps, got %d", len(defaults), len(s.Steps))
	}
	for i, step := range s.Steps {
		if step.Field != defaults[i].Field || step.Kind != defaults[i].Kind {
			return fmt.Errorf("step %d must be %s (%s), got %s (%s)", i, defaults[i].Field, defaults[i].Kind, step.Field, step.Kind)
		}
		if strings.TrimSpace(step.Prompt) == "" {
			return fmt.Errorf("step %d (%s) has an empty prompt", i, step.Field)
		}
		if step.Kind == models.InputKindSelect && len(step.Options) == 0 {
			return fmt.Errorf("step %d (%s) has no options", i, step.Field)
		}
	}
	if s.SupportEmail == "" {
		return fmt.Errorf("support e-mail cannot be empty")
	}
	return nil
}

// scriptFile is the YAML shape accepted by LoadScript. Prompts are keyed by field so the
// sequence itself cannot be reordered from configuration.
type scriptFile struct {
	Greeting       string                  `yaml:"greeting"`
	Prompts        map[models.Field]string `yaml:"prompts"`
	SuccessMessage string                  `yaml:"success_message"`
	FailureMessage string                  `yaml:"failure_message"`
	DeclineMessage string                  `yaml:"decline_message"`
	ClosedMessage  string                  `yaml:"closed_message"`
	SupportEmail   string                  `yaml:"support_email"`
}

// LoadScript reads wording overrides from a YAML file on top of DefaultScript.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("failed to read script file: %w", err)
	}
	return ParseScript(data)
}

// ParseScript applies YAML wording overrides on top of DefaultScript.
func ParseScript(data []byte) (Script, error) {
	var file scriptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Script{}, fmt.Errorf("failed to parse script: %w", err)
	}

	script := DefaultScript()
	overrideString(&script.Greeting, file.Greeting)
	overrideString(&script.SuccessMessage, file.SuccessMessage)
	overrideString(&script.FailureMessage, file.FailureMessage)
	overrideString(&script.DeclineMessage, file.DeclineMessage)
	overrideString(&script.ClosedMessage, file.ClosedMessage)
	overrideString(&script.SupportEmail, file.SupportEmail)

	for field, prompt := range file.Prompts {
		idx := script.stepIndex(field)
		if idx < 0 {
			return Script{}, fmt.Errorf("unknown field %q in script prompts", field)
		}
		overrideString(&script.Steps[idx].Prompt, prompt)
	}

	if err := script.Validate(); err != nil {
		return Script{}, err
	}
	slog.Debug("Script parsed", "prompt_overrides", len(file.Prompts), "support_email", script.SupportEmail)
	return script, nil
}

func (s Script) stepIndex(field models.Field) int {
	for i, step := range s.Steps {
		if step.Field == field {
			return i
		}
	}
	return -1
}

func overrideString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}
