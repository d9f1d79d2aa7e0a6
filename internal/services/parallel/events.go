package parallel

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"ChartPulse/internal/domain/models"
	domsvc "ChartPulse/internal/domain/service"
)

const defaultNumEvents = 10

const criticalEventsSchema = `Return a JSON object with a single key "events" containing an array of event objects.

Each event object must have these exact fields:
- "date": string in YYYY-MM-DD format (e.g., "2024-03-15")
- "title": string with a brief 5-10 word title describing the event
- "summary": string with 1-2 sentences explaining what happened and why it was critical

Return EXACTLY this JSON structure, no additional text:
{
  "events": [
    {
      "date": "YYYY-MM-DD",
      "title": "Brief event title",
      "summary": "1-2 sentence explanation."
    }
  ]
}`

// EventsFinder locates the most important dated events for a ticker.
// Structured output is preferred; free-text answers fall back to JSON
// extraction and then to numbered-markdown parsing.
type EventsFinder struct {
	client *Client
}

func NewEventsFinder(client *Client) *EventsFinder {
	return &EventsFinder{client: client}
}

func (f *EventsFinder) FindCriticalEvents(ctx context.Context, ticker, startDate, endDate string, numEvents int) (*models.CriticalEventsResult, error) {
	if numEvents <= 0 {
		numEvents = defaultNumEvents
	}
	input := fmt.Sprintf(`
Find the top %d most important and critical events, news, or developments related to %s between %s and %s.

Focus on:
- Major price movements or volatility spikes
- Significant news announcements
- Earnings reports or financial updates
- Regulatory changes or policy decisions
- Market events that significantly impacted %s
- Product launches or major business developments

For each event, provide:
1. The exact date (YYYY-MM-DD format)
2. A concise title/summary (1-2 sentences)
3. A brief explanation of why it was critical

Return the events in chronological order from earliest to latest.
`, numEvents, ticker, startDate, endDate, ticker)

	result, runID, err := f.client.runTask(ctx, input, criticalEventsSchema)
	if err != nil {
		return nil, err
	}

	events := parseEvents(&result.Output)
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date < events[j].Date })
	if len(events) > numEvents {
		events = events[:numEvents]
	}

	return &models.CriticalEventsResult{
		Ticker:    ticker,
		StartDate: startDate,
		EndDate:   endDate,
		Events:    events,
		RunID:     runID,
	}, nil
}

// parseEvents walks the fallback chain: structured events, then a JSON
// object buried in the content, then numbered markdown blocks.
func parseEvents(out *runOutput) []models.CriticalEvent {
	if events := structuredEvents(out); len(events) > 0 {
		return events
	}
	content := contentString(out.Content)
	if content == "" {
		return []models.CriticalEvent{}
	}
	if events := eventsFromJSON(content); len(events) > 0 {
		return events
	}
	return eventsFromMarkdown(content)
}

func structuredEvents(out *runOutput) []models.CriticalEvent {
	payloads := out.Events
	if len(payloads) == 0 && len(out.Content) > 0 {
		var wrapper struct {
			Events []eventPayload `json:"events"`
		}
		if err := json.Unmarshal(out.Content, &wrapper); err == nil {
			payloads = wrapper.Events
		}
	}

	events := make([]models.CriticalEvent, 0, len(payloads))
	for _, p := range payloads {
		if p.Date == "" {
			continue
		}
		date := normalizeEventDate(p.Date)
		summary := p.Summary
		if summary == "" {
			summary = p.Description
		}
		citations := make([]models.EventCitation, 0, len(p.Citations))
		for _, c := range p.Citations {
			citations = append(citations, models.EventCitation{URL: c.URL, Title: c.Title})
		}
		events = append(events, models.CriticalEvent{
			Timestamp: date + "T00:00:00Z",
			Date:      date,
			Summary:   summary,
			Title:     p.Title,
			Citations: citations,
		})
	}
	return events
}

// normalizeEventDate reformats a date to YYYY-MM-DD when it parses;
// unparseable input passes through untouched.
func normalizeEventDate(s string) string {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format("2006-01-02")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format("2006-01-02")
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.Format("2006-01-02")
	}
	return s
}

var jsonEventsPattern = regexp.MustCompile(`\{[\s\S]*"events"[\s\S]*\}`)

// eventsFromJSON pulls an {"events": [...]} object out of free text.
func eventsFromJSON(content string) []models.CriticalEvent {
	match := jsonEventsPattern.FindString(content)
	if match == "" {
		return nil
	}
	var wrapper struct {
		Events []eventPayload `json:"events"`
	}
	if err := json.Unmarshal([]byte(match), &wrapper); err != nil {
		return nil
	}
	events := make([]models.CriticalEvent, 0, len(wrapper.Events))
	for _, p := range wrapper.Events {
		if p.Date == "" {
			continue
		}
		events = append(events, models.CriticalEvent{
			Timestamp: p.Date + "T00:00:00Z",
			Date:      p.Date,
			Summary:   p.Summary,
			Title:     p.Title,
			Citations: []models.EventCitation{},
		})
	}
	return events
}

var (
	numberedItemPattern = regexp.MustCompile(`(?:^|\n)(?:#{1,4}\s*)?(?:\*{1,2})?(\d+)[.)]\s*`)
	isoDatePattern      = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
	longDatePattern     = regexp.MustCompile(`(?i)(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{1,2}),?\s+(\d{4})`)
	boldPattern         = regexp.MustCompile(`\*{1,2}([^*]+)\*{1,2}`)
	labelPrefixPattern  = regexp.MustCompile(`(?i)^(Date|Title|Event|Summary):\s*`)
	summaryPattern      = regexp.MustCompile(`(?s)[Ss]ummary[:\s]+(.+?)(\n\n|$)`)
	linkPattern         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
)

var monthNumbers = map[string]string{
	"january": "01", "february": "02", "march": "03", "april": "04",
	"may": "05", "june": "06", "july": "07", "august": "08",
	"september": "09", "october": "10", "november": "11", "december": "12",
}

// eventsFromMarkdown parses numbered lists like "1. **Title** ... 2023-11-20 ...".
func eventsFromMarkdown(content string) []models.CriticalEvent {
	events := []models.CriticalEvent{}
	for _, block := range numberedBlocks(content) {
		if event := eventFromBlock(block); event != nil {
			events = append(events, *event)
		}
	}
	return events
}

// numberedBlocks returns the text following each numbered item marker.
func numberedBlocks(content string) []string {
	locs := numberedItemPattern.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		return nil
	}
	blocks := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, content[loc[1]:end])
	}
	return blocks
}

func eventFromBlock(block string) *models.CriticalEvent {
	date := ""
	if m := isoDatePattern.FindStringSubmatch(block); m != nil {
		date = m[1]
	} else if m := longDatePattern.FindStringSubmatch(block); m != nil {
		day := m[2]
		if len(day) == 1 {
			day = "0" + day
		}
		date = m[3] + "-" + monthNumbers[strings.ToLower(m[1])] + "-" + day
	} else {
		return nil
	}

	head := block
	if len(head) > 200 {
		head = head[:200]
	}
	title := ""
	if m := boldPattern.FindStringSubmatch(head); m != nil {
		title = labelPrefixPattern.ReplaceAllString(strings.TrimSpace(m[1]), "")
	}

	summary := ""
	if m := summaryPattern.FindStringSubmatch(block); m != nil {
		summary = strings.TrimSpace(m[1])
	} else {
		for _, paragraph := range strings.Split(block, "\n\n") {
			if p := strings.TrimSpace(paragraph); p != "" {
				summary = p
				break
			}
		}
		if summary == "" {
			summary = block
			if len(summary) > 300 {
				summary = summary[:300]
			}
		}
	}
	summary = boldPattern.ReplaceAllString(summary, "$1")
	summary = linkPattern.ReplaceAllString(summary, "$1")
	summary = strings.TrimSpace(summary)
	if len(summary) > 500 {
		summary = summary[:500]
	}
	if summary == "" {
		return nil
	}

	return &models.CriticalEvent{
		Timestamp: date + "T00:00:00Z",
		Date:      date,
		Summary:   summary,
		Title:     title,
		Citations: []models.EventCitation{},
	}
}

var _ domsvc.CriticalEventsFinder = (*EventsFinder)(nil)
