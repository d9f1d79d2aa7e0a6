package formatter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"ChartPulse/pkg/logger"
)

func newTestFormatter(t *testing.T, client *openai.Client) *OpenAI {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return &OpenAI{
		client:      client,
		model:       defaultModel,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		logger:      log,
	}
}

func TestFormatWithoutClient(t *testing.T) {
	f := newTestFormatter(t, nil)
	if got := f.Format(context.Background(), "plain text"); got != "plain text" {
		t.Fatalf("expected passthrough, got %q", got)
	}
	if got := f.Format(context.Background(), ""); got != "" {
		t.Fatalf("empty input should stay empty, got %q", got)
	}
}

func TestFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != defaultModel {
			t.Fatalf("unexpected model %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != openai.ChatMessageRoleSystem {
			t.Fatalf("expected system+user messages, got %+v", req.Messages)
		}
		if !strings.Contains(req.Messages[1].Content, "Text to format:\nstock rose 5%") {
			t.Fatalf("prompt missing input text: %s", req.Messages[1].Content)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "  stock rose **5%**  "}}]
		}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	f := newTestFormatter(t, openai.NewClientWithConfig(cfg))

	got := f.Format(context.Background(), "stock rose 5%")
	if got != "stock rose **5%**" {
		t.Fatalf("unexpected formatted text %q", got)
	}
}

func TestFormatFailureReturnsOriginal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	f := newTestFormatter(t, openai.NewClientWithConfig(cfg))

	if got := f.Format(context.Background(), "keep me"); got != "keep me" {
		t.Fatalf("failure should return original, got %q", got)
	}
}
