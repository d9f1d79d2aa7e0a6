package marketdata

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizePair(t *testing.T) {
	cases := []struct {
		in     string
		ticker string
		base   string
		quote  string
	}{
		{"EURUSD", "EURUSD=X", "EUR", "USD"},
		{"eur/usd", "EURUSD=X", "EUR", "USD"},
		{"EURUSD=X", "EURUSD=X", "EUR", "USD"},
		{"GBPJPY", "GBPJPY=X", "GBP", "JPY"},
		{" audusd ", "AUDUSD=X", "AUD", "USD"},
	}
	for _, tc := range cases {
		ticker, base, quote, err := NormalizePair(tc.in)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.in, err)
		}
		if ticker != tc.ticker || base != tc.base || quote != tc.quote {
			t.Fatalf("%q: expected %s/%s/%s, got %s/%s/%s",
				tc.in, tc.ticker, tc.base, tc.quote, ticker, base, quote)
		}
	}
}

func TestNormalizePairInvalid(t *testing.T) {
	for _, in := range []string{"EUR", "EURUSDX", "", "TOOLONGPAIR"} {
		_, _, _, err := NormalizePair(in)
		if err == nil {
			t.Fatalf("%q: expected error", in)
		}
		var invalid *InvalidTickerError
		if !errors.As(err, &invalid) {
			t.Fatalf("%q: expected InvalidTickerError, got %T", in, err)
		}
		if !strings.Contains(err.Error(), "Expected format") {
			t.Fatalf("%q: unexpected message %q", in, err.Error())
		}
	}
}

func TestForexListings(t *testing.T) {
	f := NewForex(nil)
	listings := f.Listings()
	if len(listings) != 15 {
		t.Fatalf("expected 15 listings, got %d", len(listings))
	}
	for _, l := range listings {
		if l.Base != l.Pair[:3] || l.Quote != l.Pair[3:6] {
			t.Fatalf("listing currencies should split the pair, got %+v", l)
		}
		if l.Ticker != l.Pair+"=X" {
			t.Fatalf("listing ticker should carry =X, got %+v", l)
		}
	}
}
