package carrier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestDPDAdapter_RejectsInvalidTrackingNumber(t *testing.T) {
	adapter := NewDPDAdapter(AdapterConfig{}, testRetry(t), zap.NewNop())

	tests := []string{"", "short", strings.Repeat("A", 31)}
	for _, number := range tests {
		_, err := adapter.FetchHistory(context.Background(), number)
		var provErr *ProviderError
		if !errors.As(err, &provErr) {
			t.Fatalf("expected ProviderError for %q, got %v", number, err)
		}
		if provErr.Code != CodeInvalidTrackingNumber {
			t.Errorf("expected invalid_tracking_number for %q, got %s", number, provErr.Code)
		}
	}
}

func TestDPDAdapter_AcceptsThirtyCharacters(t *testing.T) {
	adapter := NewDPDAdapter(AdapterConfig{}, testRetry(t), zap.NewNop())

	if _, err := adapter.FetchHistory(context.Background(), strings.Repeat("A", 30)); err != nil {
		t.Errorf("30 characters must be accepted: %v", err)
	}
}

func TestDPDAdapter_OfflineFallback(t *testing.T) {
	adapter := NewDPDAdapter(AdapterConfig{}, testRetry(t), zap.NewNop())

	events, err := adapter.FetchHistory(context.Background(), "01234567890123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected offline events")
	}

	// The DPD offline sequence intentionally has no delivered event.
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.Status), "delivered") {
			t.Errorf("offline sequence must not contain a delivered event, got %q", ev.Status)
		}
	}
}

func TestDPDAdapter_LiveFetchMapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("parcelNumber") != "01234567890123" {
			t.Errorf("missing parcelNumber query parameter, got %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"trackingStatus":[
			{"state":"Delivered","label":"Paket zugestellt","date":"2026-08-20T09:30:00Z","depot":"Hamburg"}
		]}`))
	}))
	defer server.Close()

	adapter := NewDPDAdapter(AdapterConfig{Endpoint: server.URL}, testRetry(t), zap.NewNop())

	events, err := adapter.FetchHistory(context.Background(), "01234567890123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Status != "Delivered" || events[0].Location != "Hamburg" || events[0].Timestamp != "2026-08-20T09:30:00Z" {
		t.Errorf("unexpected envelope mapping: %+v", events[0])
	}
}

func TestDPDAdapter_RateLimitMapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	adapter := NewDPDAdapter(AdapterConfig{Endpoint: server.URL}, testRetry(t), zap.NewNop())

	_, err := adapter.FetchHistory(context.Background(), "01234567890123")
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.Code != CodeRateLimit {
		t.Errorf("expected rate_limit, got %s", provErr.Code)
	}
}

func TestDPDAdapter_SupportsCarrier(t *testing.T) {
	adapter := NewDPDAdapter(AdapterConfig{}, testRetry(t), zap.NewNop())

	if !adapter.SupportsCarrier("DPD") {
		t.Error("expected case-insensitive carrier match")
	}
	if adapter.SupportsCarrier("dhl") {
		t.Error("dpd adapter must not claim dhl")
	}
}
