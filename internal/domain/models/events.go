package models

// Citation is one source reference from a search result.
type Citation struct {
	Title    string   `json:"title,omitempty"`
	URL      string   `json:"url"`
	Excerpts []string `json:"excerpts"`
}

// SearchBasis explains one field of a search answer with its sources.
type SearchBasis struct {
	Field      string     `json:"field"`
	Citations  []Citation `json:"citations"`
	Reasoning  string     `json:"reasoning"`
	Confidence string     `json:"confidence"`
}

// SearchResult is an explanation of a series movement with citations.
type SearchResult struct {
	RunID   string        `json:"run_id"`
	Status  string        `json:"status"`
	Content string        `json:"content"`
	Basis   []SearchBasis `json:"basis"`
}

// EventCitation is a slim source reference attached to a critical event.
type EventCitation struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// CriticalEvent is one dated event with a short explanation.
type CriticalEvent struct {
	Timestamp string          `json:"timestamp"`
	Date      string          `json:"date"`
	Summary   string          `json:"summary"`
	Title     string          `json:"title,omitempty"`
	Citations []EventCitation `json:"citations"`
}

// CriticalEventsResult is the chronological list of events found for a
// ticker over a period.
type CriticalEventsResult struct {
	Ticker    string          `json:"ticker"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Events    []CriticalEvent `json:"events"`
	RunID     string          `json:"run_id"`
}
