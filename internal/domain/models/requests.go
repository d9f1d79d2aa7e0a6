package models

// Requests for dashboard HTTP endpoints. Defined in domain for consistency and reuse.

type SeriesQuery struct {
	StartDate string `query:"start_date" json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `query:"end_date" json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type SearchRequest struct {
	Ticker            string `json:"ticker" validate:"required"`
	Query             string `json:"query" validate:"required"`
	StartDate         string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate           string `json:"end_date" validate:"required,datetime=2006-01-02"`
	ChangeDescription string `json:"change_description"`
}

type BacktestRequest struct {
	Ticker     string    `json:"ticker" validate:"required"`
	Timestamps []string  `json:"timestamps" validate:"required,min=1"`
	Values     []float64 `json:"values" validate:"required,min=1"`
	StartDate  string    `json:"start_date" validate:"required"`
	EndDate    string    `json:"end_date" validate:"required"`
}

type CriticalEventsRequest struct {
	Ticker    string `json:"ticker" validate:"required"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	NumEvents int    `json:"num_events" default:"10" validate:"gte=1,lte=50"`
}

type RangeStatsRequest struct {
	Ticker     string    `json:"ticker"`
	Timestamps []string  `json:"timestamps" validate:"required,min=1"`
	Values     []float64 `json:"values" validate:"required,min=1"`
	StartIndex int       `json:"start_index" validate:"gte=0"`
	EndIndex   int       `json:"end_index" validate:"gte=0"`
}

type MacroQuery struct {
	StartYear int `query:"start_year" json:"start_year" validate:"omitempty,gte=1900,lte=2100"`
	EndYear   int `query:"end_year" json:"end_year" validate:"omitempty,gte=1900,lte=2100"`
}

type RefreshRequest struct {
	Symbols []string `json:"symbols"`
}
