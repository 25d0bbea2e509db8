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

const dpdName = "dpd"

// DPD accepts 8-30 alphanumeric characters.
var dpdTrackingNumber = regexp.MustCompile(`^[A-Za-z0-9]{8,30}$`)

// DPDAdapter fetches DPD shipment histories with the same offline fallback
// semantics as the DHL adapter.
type DPDAdapter struct {
	endpoint string
	client   *http.Client
	retry    *RetryPolicy
	breaker  *circuitbreaker.CircuitBreaker
	logger   *zap.Logger
}

func NewDPDAdapter(cfg AdapterConfig, retry *RetryPolicy, logger *zap.Logger) *DPDAdapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 8 * time.Second
	}
	return &DPDAdapter{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		retry:    retry,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:            dpdName,
			MaxFailures:     5,
			RecoveryTimeout: 30 * time.Second,
		}, logger),
		logger: logger,
	}
}

func (a *DPDAdapter) Name() string { return dpdName }

func (a *DPDAdapter) SupportsCarrier(name string) bool {
	return equalCarrier(name, dpdName)
}

func (a *DPDAdapter) FetchHistory(ctx context.Context, trackingNumber string) ([]RawEvent, error) {
	if !dpdTrackingNumber.MatchString(trackingNumber) {
		return nil, invalidNumber(dpdName, trackingNumber)
	}

	if a.endpoint == "" {
		a.logger.Debug("no DPD endpoint configured, serving offline events",
			zap.String("tracking_number", trackingNumber),
		)
		return dpdOfflineEvents(), nil
	}

	var events []RawEvent
	err := a.retry.Do(ctx, dpdName, "fetch_history", func() error {
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

// dpdEnvelope is the carrier-specific wire shape.
type dpdEnvelope struct {
	TrackingStatus []struct {
		State string `json:"state"`
		Label string `json:"label"`
		Date  string `json:"date"`
		Depot string `json:"depot"`
	} `json:"trackingStatus"`
}

func (a *DPDAdapter) fetchLive(ctx context.Context, trackingNumber string) ([]RawEvent, error) {
	if !a.breaker.Allow() {
		return nil, &ProviderError{
			Carrier: dpdName,
			Code:    CodeProviderError,
			Message: circuitbreaker.ErrCircuitOpen.Error(),
		}
	}

	requestURL := fmt.Sprintf("%s?parcelNumber=%s", a.endpoint, url.QueryEscape(trackingNumber))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build DPD request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.breaker.RecordFailure()
		return nil, mapTransportError(dpdName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		a.breaker.RecordFailure()
		return nil, mapHTTPStatus(dpdName, resp.StatusCode)
	}

	var envelope dpdEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		a.breaker.RecordFailure()
		return nil, &ProviderError{
			Carrier: dpdName,
			Code:    CodeProviderError,
			Message: fmt.Sprintf("decode DPD response: %v", err),
		}
	}

	a.breaker.RecordSuccess()

	events := make([]RawEvent, 0, len(envelope.TrackingStatus))
	for _, ev := range envelope.TrackingStatus {
		events = append(events, RawEvent{
			Status:    ev.State,
			Label:     ev.Label,
			Timestamp: ev.Date,
			Location:  ev.Depot,
		})
	}
	return events, nil
}

func dpdOfflineEvents() []RawEvent {
	now := time.Now().UTC()
	return []RawEvent{
		{
			Status:    "Order data transmitted",
			Label:     "Paketdaten übermittelt",
			Timestamp: now.Add(-48 * time.Hour).Format(time.RFC3339),
			Location:  "Aschaffenburg",
		},
		{
			Status:    "In transit",
			Label:     "Paket im Depot sortiert",
			Timestamp: now.Add(-30 * time.Hour).Format(time.RFC3339),
			Location:  "Hamburg",
		},
		{
			Status:    "Out for delivery",
			Label:     "Paket im Zustellfahrzeug",
			Timestamp: now.Add(-6 * time.Hour).Format(time.RFC3339),
			Location:  "Hamburg",
		},
	}
}
