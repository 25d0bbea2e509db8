package carrier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/orderpulse/internal/circuitbreaker"
)

const dhlName = "dhl"

// DHL accepts 8-40 alphanumeric characters.
var dhlTrackingNumber = regexp.MustCompile(`^[A-Za-z0-9]{8,40}$`)

// AdapterConfig holds the shared settings for a live carrier adapter.
type AdapterConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// DHLAdapter fetches DHL shipment histories. Without a configured endpoint it
// serves a fixed illustrative event sequence for local/offline operation;
// that fallback is deliberate, not an error path.
type DHLAdapter struct {
	endpoint string
	client   *http.Client
	retry    *RetryPolicy
	breaker  *circuitbreaker.CircuitBreaker
	logger   *zap.Logger
}

func NewDHLAdapter(cfg AdapterConfig, retry *RetryPolicy, logger *zap.Logger) *DHLAdapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 8 * time.Second
	}
	return &DHLAdapter{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		retry:    retry,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:            dhlName,
			MaxFailures:     5,
			RecoveryTimeout: 30 * time.Second,
		}, logger),
		logger: logger,
	}
}

func (a *DHLAdapter) Name() string { return dhlName }

func (a *DHLAdapter) SupportsCarrier(name string) bool {
	return equalCarrier(name, dhlName)
}

func (a *DHLAdapter) FetchHistory(ctx context.Context, trackingNumber string) ([]RawEvent, error) {
	if !dhlTrackingNumber.MatchString(trackingNumber) {
		return nil, invalidNumber(dhlName, trackingNumber)
	}

	if a.endpoint == "" {
		a.logger.Debug("no DHL endpoint configured, serving offline events",
			zap.String("tracking_number", trackingNumber),
		)
		return dhlOfflineEvents(), nil
	}

	var events []RawEvent
	err := a.retry.Do(ctx, dhlName, "fetch_history", func() error {
		fetched, err := a.fetchLive(ctx, trackingNumber)
		if err != nil {
			return err
		}
		events = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// dhlEnvelope is the carrier-specific wire shape.
type dhlEnvelope struct {
	Events []struct {
		Status      string `json:"status"`
		Description string `json:"description"`
		Timestamp   string `json:"timestamp"`
		Location    string `json:"location"`
	} `json:"events"`
}

func (a *DHLAdapter) fetchLive(ctx context.Context, trackingNumber string) ([]RawEvent, error) {
	if !a.breaker.Allow() {
		return nil, &ProviderError{
			Carrier: dhlName,
			Code:    CodeProviderError,
			Message: circuitbreaker.ErrCircuitOpen.Error(),
		}
	}

	requestURL := fmt.Sprintf("%s?trackingNumber=%s", a.endpoint, url.QueryEscape(trackingNumber))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build DHL request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.breaker.RecordFailure()
		return nil, mapTransportError(dhlName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		a.breaker.RecordFailure()
		return nil, mapHTTPStatus(dhlName, resp.StatusCode)
	}

	var envelope dhlEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		a.breaker.RecordFailure()
		return nil, &ProviderError{
			Carrier: dhlName,
			Code:    CodeProviderError,
			Message: fmt.Sprintf("decode DHL response: %v", err),
		}
	}

	a.breaker.RecordSuccess()

	events := make([]RawEvent, 0, len(envelope.Events))
	for _, ev := range envelope.Events {
		events = append(events, RawEvent{
			Status:    ev.Status,
			Label:     ev.Description,
			Timestamp: ev.Timestamp,
			Location:  ev.Location,
		})
	}
	return events, nil
}

func dhlOfflineEvents() []RawEvent {
	now := time.Now().UTC()
	return []RawEvent{
		{
			Status:    "Elektronisch angekündigt",
			Label:     "Die Sendungsdaten wurden elektronisch übermittelt",
			Timestamp: now.Add(-72 * time.Hour).Format(time.RFC3339),
			Location:  "Bonn",
		},
		{
			Status:    "In Transit",
			Label:     "Die Sendung wurde im Paketzentrum bearbeitet",
			Timestamp: now.Add(-48 * time.Hour).Format(time.RFC3339),
			Location:  "Leipzig",
		},
		{
			Status:    "In Zustellung",
			Label:     "Die Sendung wurde in das Zustellfahrzeug geladen",
			Timestamp: now.Add(-24 * time.Hour).Format(time.RFC3339),
			Location:  "Berlin",
		},
		{
			Status:    "Zugestellt",
			Label:     "Die Sendung wurde zugestellt",
			Timestamp: now.Add(-23 * time.Hour).Format(time.RFC3339),
			Location:  "Berlin",
		},
	}
}
