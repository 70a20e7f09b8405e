package scraper

import (
	"testing"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TestHTTPClientUsesOtelTransport verifies page fetches carry trace context
func TestHTTPClientUsesOtelTransport(t *testing.T) {
	s := New(Config{HTTPTimeout: 30})

	if _, ok := s.HTTPClient().Transport.(*otelhttp.Transport); !ok {
		t.Error("Scraper HTTP client does not use otelhttp.Transport; fetch spans will not link to the batch trace")
	}
}
