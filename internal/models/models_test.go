package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func validSubmission() Submission {
	return Submission{
		Name:        "Alice",
		Email:       "alice@x.com",
		Phone:       "+1-555-000",
		CompanyName: "",
		Industry:    "Technology",
		Message:     "Need help with support",
		Consent:     true,
	}
}

func TestSubmissionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Submission)
		wantErr error
	}{
		{"valid", func(s *Submission) {}, nil},
		{"empty industry allowed", func(s *Submission) { s.Industry = "" }, nil},
		{"industry case-insensitive", func(s *Submission) { s.Industry = "real estate" }, nil},
		{"missing name", func(s *Submission) { s.Name = "  " }, ErrMissingName},
		{"missing email", func(s *Submission) { s.Email = "" }, ErrMissingEmail},
		{"missing message", func(s *Submission) { s.Message = "" }, ErrMissingMessage},
		{"no consent", func(s *Submission) { s.Consent = false }, ErrConsentRequired},
		{"unknown industry", func(s *Submission) { s.Industry = "Mining" }, ErrUnknownIndustry},
		{"message too long", func(s *Submission) { s.Message = strings.Repeat("a", MaxMessageLength+1) }, ErrFieldTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSubmission()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, ErrInvalidSubmission) {
				t.Errorf("expected error to wrap ErrInvalidSubmission, got %v", err)
			}
		})
	}
}

func TestContactJSONKeepsAllFields(t *testing.T) {
	c := Contact{ID: "abc", Submission: validSubmission()}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"id", "name", "email", "phone", "company_name", "industry", "message", "consent", "created_at"} {
		if _, ok := m[key]; !ok {
			t.Errorf("expected key %q in contact JSON: %s", key, data)
		}
	}
}

func TestCanonicalIndustry(t *testing.T) {
	got, ok := CanonicalIndustry("  gaming ")
	if !ok || got != "Gaming" {
		t.Errorf("expected Gaming, got %q (ok=%v)", got, ok)
	}
	if _, ok := CanonicalIndustry("Agriculture"); ok {
		t.Error("expected Agriculture to be rejected")
	}
}

func TestSessionStateIsTerminal(t *testing.T) {
	if SessionStateAwaitingStep.IsTerminal() || SessionStateSubmitting.IsTerminal() {
		t.Error("non-terminal states reported as terminal")
	}
	if !SessionStateCompleted.IsTerminal() || !SessionStateDeclined.IsTerminal() {
		t.Error("terminal states reported as non-terminal")
	}
}

func TestMaxFieldLength(t *testing.T) {
	if n, ok := MaxFieldLength(FieldPhone); !ok || n != MaxPhoneLength {
		t.Errorf("MaxFieldLength(phone) = %d, %v; want %d, true", n, ok, MaxPhoneLength)
	}
	if n, ok := MaxFieldLength(FieldMessage); !ok || n != MaxMessageLength {
		t.Errorf("MaxFieldLength(message) = %d, %v; want %d, true", n, ok, MaxMessageLength)
	}
	for _, f := range []Field{FieldIndustry, FieldConsent} {
		if _, ok := MaxFieldLength(f); ok {
			t.Errorf("MaxFieldLength(%s) reported a limit", f)
		}
	}
}
