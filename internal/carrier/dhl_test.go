package carrier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testRetry(t *testing.T) *RetryPolicy {
	t.Helper()
	return NewRetryPolicy(3, time.Millisecond, zap.NewNop())
}

func TestDHLAdapter_RejectsInvalidTrackingNumber(t *testing.T) {
	adapter := NewDHLAdapter(AdapterConfig{}, testRetry(t), zap.NewNop())

	tests := []string{"", "short", "has space 123", strings.Repeat("A", 41)}
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

func TestDHLAdapter_OfflineFallback(t *testing.T) {
	adapter := NewDHLAdapter(AdapterConfig{}, testRetry(t), zap.NewNop())

	events, err := adapter.FetchHistory(context.Background(), "00340434161094042557")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected offline events")
	}

	// The offline sequence ends in a delivered event.
	last := events[len(events)-1]
	if last.Status != "Zugestellt" {
		t.Errorf("expected terminal offline event, got %q", last.Status)
	}
}

func TestDHLAdapter_LiveFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("trackingNumber") != "00340434161094042557" {
			t.Errorf("missing trackingNumber query parameter, got %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events":[
			{"status":"Zugestellt","description":"Die Sendung wurde zugestellt","timestamp":"2026-08-20T10:00:00Z","location":"Berlin"}
		]}`))
	}))
	defer server.Close()

	adapter := NewDHLAdapter(AdapterConfig{Endpoint: server.URL}, testRetry(t), zap.NewNop())

	events, err := adapter.FetchHistory(context.Background(), "00340434161094042557")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Status != "Zugestellt" || events[0].Location != "Berlin" {
		t.Errorf("unexpected event mapping: %+v", events[0])
	}
}

func TestDHLAdapter_RateLimitMapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	adapter := NewDHLAdapter(AdapterConfig{Endpoint: server.URL}, testRetry(t), zap.NewNop())

	_, err := adapter.FetchHistory(context.Background(), "00340434161094042557")
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.Code != CodeRateLimit {
		t.Errorf("expected rate_limit, got %s", provErr.Code)
	}
}

func TestDHLAdapter_ServerErrorMapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := NewDHLAdapter(AdapterConfig{Endpoint: server.URL}, testRetry(t), zap.NewNop())

	_, err := adapter.FetchHistory(context.Background(), "00340434161094042557")
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.Code != CodeProviderError {
		t.Errorf("expected provider_error, got %s", provErr.Code)
	}
}

func TestDHLAdapter_TimeoutMapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	adapter := NewDHLAdapter(AdapterConfig{
		Endpoint: server.URL,
		Timeout:  20 * time.Millisecond,
	}, testRetry(t), zap.NewNop())

	_, err := adapter.FetchHistory(context.Background(), "00340434161094042557")
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.Code != CodeTimeout {
		t.Errorf("expected timeout, got %s", provErr.Code)
	}
}

func TestDHLAdapter_SupportsCarrier(t *testing.T) {
	adapter := NewDHLAdapter(AdapterConfig{}, testRetry(t), zap.NewNop())

	if !adapter.SupportsCarrier("dhl") || !adapter.SupportsCarrier(" DHL ") {
		t.Error("expected case- and whitespace-insensitive carrier match")
	}
	if adapter.SupportsCarrier("dpd") {
		t.Error("dhl adapter must not claim dpd")
	}
}
