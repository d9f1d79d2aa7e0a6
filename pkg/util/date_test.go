package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDateOnly(t *testing.T) {
	got, ok := ParseTime("2024-10-10")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Year() != 2024 || got.Month() != time.October || got.Day() != 10 {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeBareDatetime(t *testing.T) {
	got, ok := ParseTime("2024-10-10T10:10:10")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Hour() != 10 || got.Minute() != 10 {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestDateKey(t *testing.T) {
	cases := map[string]string{
		"2024-10-10T10:10:10Z": "2024-10-10",
		"2024-10-10":           "2024-10-10",
		"2024-10-10 23:59:59":  "2024-10-10",
		"not-a-date-but-long":  "not-a-date",
		"short":                "short",
	}
	for in, want := range cases {
		if got := DateKey(in); got != want {
			t.Fatalf("DateKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestISOWeek(t *testing.T) {
	// Jan 1 2027 is a Friday and belongs to ISO week 53 of 2026.
	got := ISOWeek(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	if got != "2026-W53" {
		t.Fatalf("unexpected week label %q", got)
	}
	got = ISOWeek(time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC))
	if got != "2025-W35" {
		t.Fatalf("unexpected week label %q", got)
	}
}

func TestTruncateToDay(t *testing.T) {
	in := time.Date(2024, 10, 10, 18, 30, 5, 0, time.UTC)
	got := TruncateToDay(in)
	if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 {
		t.Fatalf("expected midnight, got %v", got)
	}
	if got.Day() != 10 {
		t.Fatalf("day changed: %v", got)
	}
}
