package usecase

import (
	"context"
	"errors"
	"testing"
)

func TestKafkaPricesHandlerStoresBatch(t *testing.T) {
	store := &fakeStorage{}
	metrics := &fakeMetrics{}
	h := NewKafkaPricesHandler("prices", store, metrics)

	if h.Topic() != "prices" {
		t.Fatalf("unexpected topic %q", h.Topic())
	}

	msg := []byte(`{
		"asset_class": "equities",
		"symbol": "AAPL",
		"points": [
			{"asset_class": "equities", "symbol": "AAPL", "as_of": "2024-01-02T00:00:00Z", "value": 185.5, "source": "yahoo-finance"},
			{"asset_class": "equities", "symbol": "AAPL", "as_of": "2024-01-03T00:00:00Z", "value": 184.25, "source": "yahoo-finance"}
		]
	}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.batches) != 1 || len(store.batches[0].Points) != 2 {
		t.Fatalf("expected stored batch with 2 points, got %+v", store.batches)
	}
	if store.batches[0].Points[0].AsOf.IsZero() {
		t.Fatalf("point timestamps must survive the round trip")
	}
	if len(metrics.sent) != 1 || metrics.sent[0] != "clickhouse:AAPL" {
		t.Fatalf("unexpected sent metrics %v", metrics.sent)
	}
}

func TestKafkaPricesHandlerBadJSON(t *testing.T) {
	metrics := &fakeMetrics{}
	h := NewKafkaPricesHandler("prices", &fakeStorage{}, metrics)

	if err := h.Handle(context.Background(), []byte("{not json")); err == nil {
		t.Fatalf("expected unmarshal error")
	}
	if len(metrics.errors) != 1 || metrics.errors[0] != "consumer_unmarshal" {
		t.Fatalf("unexpected error metrics %v", metrics.errors)
	}
}

func TestKafkaPricesHandlerEmptyBatch(t *testing.T) {
	store := &fakeStorage{}
	h := NewKafkaPricesHandler("prices", store, &fakeMetrics{})

	if err := h.Handle(context.Background(), []byte(`{"asset_class":"equities","symbol":"AAPL","points":[]}`)); err != nil {
		t.Fatalf("empty batches are a no-op, got %v", err)
	}
	if len(store.batches) != 0 {
		t.Fatalf("expected no writes for empty batch")
	}
}

func TestKafkaPricesHandlerStoreError(t *testing.T) {
	store := &fakeStorage{batchErr: errors.New("insert failed")}
	metrics := &fakeMetrics{}
	h := NewKafkaPricesHandler("prices", store, metrics)

	msg := []byte(`{"asset_class":"equities","symbol":"AAPL","points":[{"symbol":"AAPL","as_of":"2024-01-02T00:00:00Z","value":185.5}]}`)
	if err := h.Handle(context.Background(), msg); err == nil {
		t.Fatalf("expected store error to bubble up")
	}
	if len(metrics.errors) != 1 || metrics.errors[0] != "consumer_store" {
		t.Fatalf("unexpected error metrics %v", metrics.errors)
	}
}
