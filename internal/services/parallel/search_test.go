package parallel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type prefixFormatter struct{}

func (prefixFormatter) Format(_ context.Context, text string) string { return "fmt:" + text }

func TestExplainMovement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/tasks/runs":
			var req createRunRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if !strings.Contains(req.Input, "Asset/Series: AAPL") ||
				!strings.Contains(req.Input, "Time Period: 2024-01-01 to 2024-02-01") ||
				!strings.Contains(req.Input, "Observed Change: AAPL fell 10.00%") {
				t.Fatalf("unexpected input: %s", req.Input)
			}
			if !strings.Contains(req.TaskSpec.OutputSchema, "why AAPL changed during 2024-01-01 to 2024-02-01") {
				t.Fatalf("unexpected schema: %s", req.TaskSpec.OutputSchema)
			}
			_, _ = w.Write([]byte(`{"run_id": "run-7", "status": "queued"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/tasks/runs/run-7/result":
			_, _ = w.Write([]byte(`{
				"run": {"run_id": "run-7", "status": "completed"},
				"output": {
					"content": "Shares fell on weak guidance.",
					"basis": [{
						"citations": [{"title": "Guidance cut", "url": "https://example.com/news"}],
						"reasoning": "Multiple outlets reported the cut.",
						"confidence": "high"
					}]
				}
			}`))
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	s := NewSearcher(newTestParallelClient(t, srv.URL, "pk"), prefixFormatter{})
	result, err := s.ExplainMovement(context.Background(),
		"AAPL", "Why did it drop?", "2024-01-01", "2024-02-01", "AAPL fell 10.00% from 190.00 to 171.00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RunID != "run-7" || result.Status != "completed" {
		t.Fatalf("unexpected run identity %+v", result)
	}
	if result.Content != "fmt:Shares fell on weak guidance." {
		t.Fatalf("content not formatted: %q", result.Content)
	}
	if len(result.Basis) != 1 {
		t.Fatalf("expected 1 basis entry, got %d", len(result.Basis))
	}
	basis := result.Basis[0]
	if basis.Field != "output" {
		t.Fatalf("empty field should default to output, got %q", basis.Field)
	}
	if basis.Reasoning != "fmt:Multiple outlets reported the cut." {
		t.Fatalf("reasoning not formatted: %q", basis.Reasoning)
	}
	if len(basis.Citations) != 1 || basis.Citations[0].URL != "https://example.com/news" {
		t.Fatalf("unexpected citations %+v", basis.Citations)
	}
	if basis.Citations[0].Excerpts == nil {
		t.Fatalf("excerpts should be an empty list, not null")
	}
}

func TestExplainMovementOmitsEmptyChange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			var req createRunRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if strings.Contains(req.Input, "Observed Change") {
				t.Fatalf("change line should be omitted: %s", req.Input)
			}
			_, _ = w.Write([]byte(`{"run_id": "run-8", "status": "queued"}`))
			return
		}
		_, _ = w.Write([]byte(`{"run": {"status": "completed"}, "output": {"content": "ok"}}`))
	}))
	defer srv.Close()

	s := NewSearcher(newTestParallelClient(t, srv.URL, "pk"), prefixFormatter{})
	result, err := s.ExplainMovement(context.Background(), "EURUSD=X", "what happened", "2024-01-01", "2024-02-01", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "fmt:ok" {
		t.Fatalf("unexpected content %q", result.Content)
	}
}
