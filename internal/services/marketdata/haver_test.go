package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ChartPulse/pkg/cache"
	xhttp "ChartPulse/pkg/http"
)

func TestNormalizeHaverDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2016", "2016-01-01T00:00:00"},
		{"2024-03-05", "2024-03-05T00:00:00"},
		{"2024-03-05T15:04:05", "2024-03-05T15:04:05"},
		{"garbage", "garbage"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalizeHaverDate(tc.in); got != tc.want {
			t.Errorf("normalizeHaverDate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func newTestHaver(t *testing.T, baseURL, apiKey string, c cache.Service) *Haver {
	t.Helper()
	return &Haver{
		baseURL:     baseURL,
		apiKey:      apiKey,
		client:      xhttp.NewClient(xhttp.WithTimeout(5 * time.Second)),
		cache:       c,
		dataTTL:     time.Minute,
		listingsTTL: time.Minute,
		metrics:     nopMetrics{},
		logger:      newTestLogger(t),
	}
}

func TestHaverFetchSeries(t *testing.T) {
	var dataCalls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("missing auth header, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/database/EUDATA/series":
			_, _ = w.Write([]byte(`{"series": {
				"GDPDE": {"description": "Germany: Gross Domestic Product (Mil.Euros)", "frequency": "Q"},
				"CPIDE": "Germany: Consumer Prices"
			}}`))
		case "/v1/data":
			atomic.AddInt64(&dataCalls, 1)
			if got := r.URL.Query().Get("codes"); got != "GDPDE@EUDATA" {
				t.Fatalf("unexpected codes param %q", got)
			}
			_, _ = w.Write([]byte(`{"series": [
				{"code": "GDPDE@EUDATA", "dates": ["2016", "2017"], "values": [780123.4, 801456.7]}
			]}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	mem := cache.NewMemoryCache()
	defer mem.Close()
	h := newTestHaver(t, srv.URL, "test-key", mem)

	data, err := h.FetchSeries(context.Background(), "EUDATA", "GDPDE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.Database != "EUDATA" || data.Series != "GDPDE" {
		t.Fatalf("unexpected identity %+v", data)
	}
	if data.Currency != "Mil.Euros" {
		t.Fatalf("expected currency from description, got %q", data.Currency)
	}
	if data.Timestamps[0] != "2016-01-01T00:00:00" {
		t.Fatalf("expected normalized annual date, got %q", data.Timestamps[0])
	}
	if len(data.Values) != 2 || data.Values[1] != 801456.7 {
		t.Fatalf("unexpected values %v", data.Values)
	}

	// second fetch is served from cache
	again, err := h.FetchSeries(context.Background(), "EUDATA", "GDPDE")
	if err != nil {
		t.Fatalf("unexpected error on cached fetch: %v", err)
	}
	if again.Currency != "Mil.Euros" || len(again.Values) != 2 {
		t.Fatalf("cached result mismatch %+v", again)
	}
	if n := atomic.LoadInt64(&dataCalls); n != 1 {
		t.Fatalf("expected 1 upstream data call, got %d", n)
	}
}

func TestHaverFetchSeriesNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/data" {
			_, _ = w.Write([]byte(`{"series": []}`))
			return
		}
		_, _ = w.Write([]byte(`{"series": {}}`))
	}))
	defer srv.Close()

	h := newTestHaver(t, srv.URL, "test-key", nil)
	_, err := h.FetchSeries(context.Background(), "EUDATA", "MISSING")
	if err == nil {
		t.Fatalf("expected error")
	}
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %T", err)
	}
	if err.Error() != "no data found for Haver code: MISSING@EUDATA" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestHaverMissingAPIKey(t *testing.T) {
	h := newTestHaver(t, "http://unused", "", nil)

	_, err := h.Databases(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if err.Error() != "HAVER_API_KEY environment variable not set" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	if _, err := h.FetchSeries(context.Background(), "DB", "S"); err == nil {
		t.Fatalf("expected auth error from FetchSeries")
	}
}
