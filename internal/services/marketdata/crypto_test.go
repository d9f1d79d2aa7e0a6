package marketdata

import "testing"

func TestNormalizeCryptoTicker(t *testing.T) {
	cases := map[string]string{
		"BTC":     "BTC-USD",
		"btc":     "BTC-USD",
		" eth ":   "ETH-USD",
		"BTC-USD": "BTC-USD",
		"ETH-EUR": "ETH-EUR",
		"XYZ":     "XYZ-USD",
	}
	for in, want := range cases {
		if got := NormalizeTicker(in); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
}

func TestCryptoListings(t *testing.T) {
	c := NewCrypto(nil)
	listings := c.Listings()
	if len(listings) != 15 {
		t.Fatalf("expected 15 listings, got %d", len(listings))
	}
	if listings[0].Symbol != "BTC" || listings[0].Ticker != "BTC-USD" {
		t.Fatalf("unexpected first listing %+v", listings[0])
	}
	for _, l := range listings {
		if l.Name != l.Symbol {
			t.Fatalf("listing name should mirror symbol, got %+v", l)
		}
	}
}
