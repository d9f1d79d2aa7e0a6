package parallel

import (
	"context"
	"fmt"

	"ChartPulse/internal/domain/models"
	domsvc "ChartPulse/internal/domain/service"
)

// Searcher explains a series movement by running a web research task
// and formatting the answer for display.
type Searcher struct {
	client    *Client
	formatter domsvc.TextFormatter
}

func NewSearcher(client *Client, formatter domsvc.TextFormatter) *Searcher {
	return &Searcher{client: client, formatter: formatter}
}

func (s *Searcher) ExplainMovement(ctx context.Context, ticker, query, startDate, endDate, changeDescription string) (*models.SearchResult, error) {
	changeLine := ""
	if changeDescription != "" {
		changeLine = "- Observed Change: " + changeDescription
	}
	input := fmt.Sprintf(`
%s

Context:
- Asset/Series: %s
- Time Period: %s to %s
%s

Please search for news, events, or factors that could explain what happened to %s during this specific time period (%s to %s).
`, query, ticker, startDate, endDate, changeLine, ticker, startDate, endDate)

	schema := fmt.Sprintf(
		"A detailed explanation of why %s changed during %s to %s, including specific events, news, or market factors.",
		ticker, startDate, endDate)

	result, runID, err := s.client.runTask(ctx, input, schema)
	if err != nil {
		return nil, err
	}

	basis := make([]models.SearchBasis, 0, len(result.Output.Basis))
	for _, b := range result.Output.Basis {
		field := b.Field
		if field == "" {
			field = "output"
		}
		citations := make([]models.Citation, 0, len(b.Citations))
		for _, c := range b.Citations {
			excerpts := c.Excerpts
			if excerpts == nil {
				excerpts = []string{}
			}
			citations = append(citations, models.Citation{
				Title:    c.Title,
				URL:      c.URL,
				Excerpts: excerpts,
			})
		}
		reasoning := b.Reasoning
		if reasoning != "" {
			reasoning = s.formatter.Format(ctx, reasoning)
		}
		basis = append(basis, models.SearchBasis{
			Field:      field,
			Citations:  citations,
			Reasoning:  reasoning,
			Confidence: b.Confidence,
		})
	}

	return &models.SearchResult{
		RunID:   runID,
		Status:  result.Run.Status,
		Content: s.formatter.Format(ctx, contentString(result.Output.Content)),
		Basis:   basis,
	}, nil
}

var _ domsvc.MovementExplainer = (*Searcher)(nil)
