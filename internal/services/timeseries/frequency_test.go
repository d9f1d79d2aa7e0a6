package timeseries

import "testing"

func TestDetectFrequency(t *testing.T) {
	cases := []struct {
		name       string
		timestamps []string
		code       string
		human      string
	}{
		{"daily", []string{"2024-01-01", "2024-01-02", "2024-01-03"}, "D", "day"},
		{"weekly", []string{"2024-01-01", "2024-01-08", "2024-01-15"}, "W", "week"},
		{"monthly", []string{"2024-01-31", "2024-02-29", "2024-03-31"}, "M", "month"},
		{"quarterly", []string{"2024-01-01", "2024-04-01", "2024-07-01"}, "Q", "quarter"},
		{"annual", []string{"2020-01-01", "2021-01-01", "2022-01-01"}, "A", "year"},
		{"single point", []string{"2024-01-01"}, "D", "day"},
		{"empty", nil, "D", "day"},
		{"unparseable", []string{"2024-01-01", "garbage", "2024-01-03"}, "D", "day"},
	}
	for _, tc := range cases {
		code, human := DetectFrequency(tc.timestamps)
		if code != tc.code || human != tc.human {
			t.Fatalf("%s: expected %s/%s, got %s/%s", tc.name, tc.code, tc.human, code, human)
		}
	}
}

func TestWindowString(t *testing.T) {
	cases := map[string]string{"D": "1D", "W": "1W", "M": "1M", "Q": "1Q", "A": "1Y", "X": "1D"}
	for code, want := range cases {
		if got := WindowString(code); got != want {
			t.Fatalf("%s: expected %s, got %s", code, want, got)
		}
	}
}
