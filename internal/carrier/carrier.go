// Package carrier holds the tracking adapters, one per carrier, behind a
// capability interface selected at call time.
package carrier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Provider error codes. Codes are structured and distinct from the human
// message so callers can branch without string matching.
const (
	CodeRateLimit             = "rate_limit"
	CodeProviderError         = "provider_error"
	CodeTimeout               = "timeout"
	CodeNotSupported          = "carrier_not_supported"
	CodeInvalidTrackingNumber = "invalid_tracking_number"
)

// ProviderError is a typed carrier failure.
type ProviderError struct {
	Carrier string
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Carrier, e.Code, e.Message)
}

// RawEvent is the common shape every adapter maps its carrier-specific events
// into. Timestamp is an ISO-8601 string as delivered by the carrier.
type RawEvent struct {
	Status    string `json:"status"`
	Label     string `json:"label"`
	Timestamp string `json:"timestamp"`
	Location  string `json:"location"`
}

// Adapter fetches and normalizes a single carrier's shipment history.
type Adapter interface {
	Name() string
	SupportsCarrier(name string) bool
	FetchHistory(ctx context.Context, trackingNumber string) ([]RawEvent, error)
}

func equalCarrier(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), b)
}

func invalidNumber(carrier, trackingNumber string) *ProviderError {
	return &ProviderError{
		Carrier: carrier,
		Code:    CodeInvalidTrackingNumber,
		Message: fmt.Sprintf("tracking number %q does not match the %s shape", trackingNumber, carrier),
	}
}

// mapHTTPStatus translates a non-2xx carrier response into a provider error.
func mapHTTPStatus(carrier string, statusCode int) *ProviderError {
	code := CodeProviderError
	if statusCode == http.StatusTooManyRequests {
		code = CodeRateLimit
	}
	return &ProviderError{
		Carrier: carrier,
		Code:    code,
		Message: fmt.Sprintf("carrier endpoint returned status %d", statusCode),
	}
}

// mapTransportError translates a network-level failure into a provider error.
func mapTransportError(carrier string, err error) *ProviderError {
	code := CodeProviderError
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		code = CodeTimeout
	}
	return &ProviderError{
		Carrier: carrier,
		Code:    code,
		Message: err.Error(),
	}
}
