package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   *openai.ChatCompletion
	err    error
	params []openai.ChatCompletionNewParams
}

func (m *mockChatService) New(_ context.Context, body openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.params = append(m.params, body)
	return m.resp, m.err
}

func reply(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGenerateText_Success(t *testing.T) {
	mock := &mockChatService{resp: reply("Hello World")}
	client := &Client{chat: mock, model: DefaultModel}
	out, err := client.GenerateText(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
	if len(mock.params) != 1 || len(mock.params[0].Messages) != 2 {
		t.Errorf("expected one request with system and user messages, got %+v", mock.params)
	}
	if mock.params[0].Model != DefaultModel {
		t.Errorf("model = %q, want %q", mock.params[0].Model, DefaultModel)
	}
}

func TestGenerateText_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.GenerateText(context.Background(), "sys", "usr")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerateText_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: &openai.ChatCompletion{}}}
	_, err := client.GenerateText(context.Background(), "sys", "usr")
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestClassifyIndustry(t *testing.T) {
	options := []string{"Healthcare", "Gaming", "Real Estate", "Other"}
	tests := []struct {
		name    string
		reply   string
		want    string
		wantErr bool
	}{
		{"exact", "Gaming", "Gaming", false},
		{"case and punctuation", " real estate.\n", "Real Estate", false},
		{"quoted", `"Healthcare"`, "Healthcare", false},
		{"not an option", "Space mining", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockChatService{resp: reply(tt.reply)}
			client := &Client{chat: mock, model: DefaultModel}
			got, err := client.ClassifyIndustry(context.Background(), "we build video games", options)
			if tt.wantErr {
				if !errors.Is(err, ErrUnrecognizedOption) {
					t.Errorf("expected ErrUnrecognizedOption, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ClassifyIndustry() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyIndustry_NoOptions(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: reply("Gaming")}}
	if _, err := client.ClassifyIndustry(context.Background(), "text", nil); err == nil {
		t.Error("expected error with no options")
	}
}

func TestNewClient_NoKey(t *testing.T) {
	if _, err := NewClient(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", cli.model)
	}
}
