package parallel

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"ChartPulse/internal/domain/repository"
	"ChartPulse/pkg/config"
	xhttp "ChartPulse/pkg/http"
	"ChartPulse/pkg/logger"
)

const (
	defaultBaseURL       = "https://api.parallel.ai"
	defaultProcessor     = "base"
	defaultResultTimeout = 120 * time.Second
)

// Client drives the Parallel task API: create a run, then block on its
// result endpoint until the run finishes or the timeout passes.
type Client struct {
	baseURL       string
	apiKey        string
	processor     string
	client        *xhttp.Client
	resultTimeout time.Duration
	metrics       repository.Metrics
	logger        *logger.Logger
}

func NewClient(cfg *config.Config, log *logger.Logger, m repository.Metrics) *Client {
	sc := cfg.Search
	baseURL := sc.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	processor := sc.Processor
	if processor == "" {
		processor = defaultProcessor
	}
	resultTimeout := sc.Timeout
	if resultTimeout <= 0 {
		resultTimeout = defaultResultTimeout
	}
	return &Client{
		baseURL:   baseURL,
		apiKey:    sc.APIKey,
		processor: processor,
		// the result endpoint holds the connection until the run is done
		client:        xhttp.NewClient(xhttp.WithTimeout(resultTimeout + 15*time.Second)),
		resultTimeout: resultTimeout,
		metrics:       m,
		logger:        log,
	}
}

type taskSpec struct {
	OutputSchema string `json:"output_schema"`
}

type createRunRequest struct {
	Input     string   `json:"input"`
	TaskSpec  taskSpec `json:"task_spec"`
	Processor string   `json:"processor"`
}

type createRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

type runStatus struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

type citationPayload struct {
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Excerpts []string `json:"excerpts"`
}

type basisPayload struct {
	Field      string            `json:"field"`
	Citations  []citationPayload `json:"citations"`
	Reasoning  string            `json:"reasoning"`
	Confidence string            `json:"confidence"`
}

type eventPayload struct {
	Date        string            `json:"date"`
	Title       string            `json:"title"`
	Summary     string            `json:"summary"`
	Description string            `json:"description"`
	Citations   []citationPayload `json:"citations"`
}

// runOutput is the task output. Content is raw because structured runs
// return an object while text runs return a string.
type runOutput struct {
	Content json.RawMessage `json:"content"`
	Basis   []basisPayload  `json:"basis"`
	Events  []eventPayload  `json:"events"`
}

type runResult struct {
	Run    runStatus `json:"run"`
	Output runOutput `json:"output"`
}

func (c *Client) runTask(ctx context.Context, input, outputSchema string) (*runResult, string, error) {
	if c.apiKey == "" {
		return nil, "", xhttp.UnauthorizedError("PARALLEL_API_KEY environment variable not set")
	}
	headers := map[string]string{
		"x-api-key":    c.apiKey,
		"Content-Type": "application/json",
	}

	var created createRunResponse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     c.baseURL + "/v1/tasks/runs",
		Headers: headers,
		Body: createRunRequest{
			Input:     input,
			TaskSpec:  taskSpec{OutputSchema: outputSchema},
			Processor: c.processor,
		},
	}, &created)
	if err != nil {
		c.metrics.RecordFetch("parallel", "error")
		return nil, "", fmt.Errorf("create task run: %w", err)
	}

	var result runResult
	err = c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     fmt.Sprintf("%s/v1/tasks/runs/%s/result", c.baseURL, created.RunID),
		Headers: headers,
		QueryParams: map[string][]string{
			"api_timeout": {strconv.Itoa(int(c.resultTimeout / time.Second))},
		},
	}, &result)
	if err != nil {
		c.metrics.RecordFetch("parallel", "error")
		return nil, created.RunID, fmt.Errorf("task run %s result: %w", created.RunID, err)
	}

	c.metrics.RecordFetch("parallel", "success")
	c.logger.Debug("task run finished",
		logger.String("run_id", created.RunID),
		logger.String("status", result.Run.Status))
	return &result, created.RunID, nil
}

// contentString renders the task content as text. Structured objects
// come back as their JSON text.
func contentString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
