package parallel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	xhttp "ChartPulse/pkg/http"
	"ChartPulse/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string)            {}
func (nopMetrics) RecordError(string)                    {}
func (nopMetrics) RecordMessageSent(string, string)      {}
func (nopMetrics) RecordRunMAPE(string, string, float64) {}
func (nopMetrics) RecordLatency(string, float64)         {}
func (nopMetrics) RecordCacheOutcome(string, string)     {}

func newTestParallelClient(t *testing.T, baseURL, apiKey string) *Client {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		processor:     defaultProcessor,
		client:        xhttp.NewClient(xhttp.WithTimeout(5 * time.Second)),
		resultTimeout: 5 * time.Second,
		metrics:       nopMetrics{},
		logger:        log,
	}
}

func TestStructuredEvents(t *testing.T) {
	out := &runOutput{
		Content: json.RawMessage(`{"events": [
			{"date": "2024-03-15", "title": "Rate decision", "summary": "Central bank held rates."},
			{"date": "2024-01-05T10:30:00Z", "title": "Earnings", "summary": "Beat estimates."},
			{"title": "No date", "summary": "dropped"}
		]}`),
	}
	events := structuredEvents(out)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Date != "2024-03-15" || events[0].Timestamp != "2024-03-15T00:00:00Z" {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].Date != "2024-01-05" {
		t.Fatalf("ISO timestamp should reduce to its date, got %q", events[1].Date)
	}
}

func TestStructuredEventsDescriptionFallback(t *testing.T) {
	out := &runOutput{Events: []eventPayload{
		{Date: "2024-02-01", Description: "described, not summarized"},
	}}
	events := structuredEvents(out)
	if len(events) != 1 || events[0].Summary != "described, not summarized" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestEventsFromJSON(t *testing.T) {
	content := `Here is what I found:

{"events": [{"date": "2023-11-20", "title": "Leadership change", "summary": "CEO departed."}]}

Let me know if you need more.`
	events := eventsFromJSON(content)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Date != "2023-11-20" || events[0].Title != "Leadership change" {
		t.Fatalf("unexpected event %+v", events[0])
	}
	if eventsFromJSON("no json here") != nil {
		t.Fatalf("plain text should yield no events")
	}
}

func TestEventsFromMarkdown(t *testing.T) {
	content := `Key developments:

1. **Title: Supply shortage** on 2023-09-12 pressured margins.

Summary: Component shortages [report](https://example.com/a) cut **output** sharply.

2. Analysts reacted to the November 20, 2023 guidance cut.

3. No date in this block, so it is skipped.
`
	events := eventsFromMarkdown(content)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}

	first := events[0]
	if first.Date != "2023-09-12" {
		t.Fatalf("unexpected date %q", first.Date)
	}
	if first.Title != "Supply shortage" {
		t.Fatalf("label prefix should be stripped from title, got %q", first.Title)
	}
	if strings.Contains(first.Summary, "**") || strings.Contains(first.Summary, "](") {
		t.Fatalf("markdown not cleaned from summary: %q", first.Summary)
	}
	if !strings.Contains(first.Summary, "report") || !strings.Contains(first.Summary, "output") {
		t.Fatalf("summary lost text: %q", first.Summary)
	}

	second := events[1]
	if second.Date != "2023-11-20" {
		t.Fatalf("month-name date not normalized: %q", second.Date)
	}
	if second.Timestamp != "2023-11-20T00:00:00Z" {
		t.Fatalf("unexpected timestamp %q", second.Timestamp)
	}
}

func TestFindCriticalEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "pk" {
			t.Fatalf("missing api key header")
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/tasks/runs":
			var req createRunRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if req.Processor != "base" {
				t.Fatalf("unexpected processor %q", req.Processor)
			}
			if !strings.Contains(req.Input, "top 2 most important and critical events") ||
				!strings.Contains(req.Input, "TSLA between 2024-01-01 and 2024-06-30") {
				t.Fatalf("unexpected input: %s", req.Input)
			}
			_, _ = w.Write([]byte(`{"run_id": "run-42", "status": "queued"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/tasks/runs/run-42/result":
			// out of order plus one extra beyond the requested count
			_, _ = w.Write([]byte(`{
				"run": {"run_id": "run-42", "status": "completed"},
				"output": {"content": {"events": [
					{"date": "2024-05-10", "title": "C", "summary": "third"},
					{"date": "2024-01-15", "title": "A", "summary": "first"},
					{"date": "2024-03-02", "title": "B", "summary": "second"}
				]}}
			}`))
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	finder := NewEventsFinder(newTestParallelClient(t, srv.URL, "pk"))
	result, err := finder.FindCriticalEvents(context.Background(), "TSLA", "2024-01-01", "2024-06-30", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RunID != "run-42" || result.Ticker != "TSLA" {
		t.Fatalf("unexpected result identity %+v", result)
	}
	if len(result.Events) != 2 {
		t.Fatalf("expected events limited to 2, got %d", len(result.Events))
	}
	if result.Events[0].Title != "A" || result.Events[1].Title != "B" {
		t.Fatalf("events not sorted by date: %+v", result.Events)
	}
}

func TestFindCriticalEventsMissingKey(t *testing.T) {
	finder := NewEventsFinder(newTestParallelClient(t, "http://unused", ""))
	_, err := finder.FindCriticalEvents(context.Background(), "TSLA", "2024-01-01", "2024-06-30", 5)
	if err == nil {
		t.Fatalf("expected error")
	}
	var appErr *xhttp.AppError
	if !errors.As(err, &appErr) || appErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 AppError, got %v", err)
	}
	if !strings.Contains(err.Error(), "PARALLEL_API_KEY environment variable not set") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
