package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// SkipSentinel clears the optional company name.
const SkipSentinel = "skip"

// affirmativeTokens mark consent when found anywhere in the answer.
var affirmativeTokens = []string{"yes", "agree"}

// Answer rejection errors. A rejected answer leaves the session on the same step.
var (
	ErrEmptyAnswer   = errors.New("answer cannot be empty")
	ErrUnknownOption = errors.New("answer does not match any of the options")
	ErrAnswerTooLong = errors.New("answer is too long")
)

// IsAffirmative reports whether a consent answer contains an affirmative token.
func IsAffirmative(input string) bool {
	lower := strings.ToLower(input)
	for _, token := range affirmativeTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// NormalizeCompanyName maps the skip sentinel to an empty company name.
func NormalizeCompanyName(input string) string {
	if strings.EqualFold(strings.TrimSpace(input), SkipSentinel) {
		return ""
	}
	return input
}

// MatchOption resolves an answer to one of options, by name (case-insensitive) or by
// its 1-based position in the list.
func MatchOption(input string, options []string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	for _, opt := range options {
		if strings.EqualFold(opt, trimmed) {
			return opt, true
		}
	}
	if n, err := strconv.Atoi(strings.TrimSuffix(trimmed, ".")); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], true
	}
	return "", false
}

// normalizeAnswer applies the per-field rule of step to input and returns the value to store.
func normalizeAnswer(ctx context.Context, step models.Step, input string, classifier IndustryClassifier) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", ErrEmptyAnswer
	}

	switch step.Kind {
	case models.InputKindSelect:
		if opt, ok := MatchOption(input, step.Options); ok {
			return opt, nil
		}
		if classifier == nil {
			return "", ErrUnknownOption
		}
		opt, err := classifier.ClassifyIndustry(ctx, input, step.Options)
		if err != nil {
			slog.Warn("normalizeAnswer: classifier failed", "field", step.Field, "error", err)
			return "", ErrUnknownOption
		}
		if matched, ok := MatchOption(opt, step.Options); ok {
			slog.Debug("normalizeAnswer: classifier matched option", "field", step.Field, "option", matched)
			return matched, nil
		}
		return "", ErrUnknownOption
	case models.InputKindConsent:
		if IsAffirmative(input) {
			return "true", nil
		}
		return "false", nil
	}

	value := input
	if step.Field == models.FieldCompanyName {
		value = NormalizeCompanyName(input)
	}
	if limit, ok := models.MaxFieldLength(step.Field); ok && len(value) > limit {
		return "", fmt.Errorf("%w: %s allows at most %d characters", ErrAnswerTooLong, step.Field, limit)
	}
	return value, nil
}
