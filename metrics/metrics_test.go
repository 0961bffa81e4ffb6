package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestObserveProvider(t *testing.T) {
	counter := ProviderRequests.WithLabelValues("test-provider", OutcomeTimeout)
	before := counterValue(t, counter)

	ObserveProvider("test-provider", OutcomeTimeout, 10*time.Millisecond)

	assert.Equal(t, before+1, counterValue(t, counter))
}

func TestHandlerExposesMetrics(t *testing.T) {
	ObserveHTTP("GET", "/health", 200, time.Millisecond)
	DashboardFallbacks.WithLabelValues("movies").Add(0)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "letswatch_http_requests_total")
	assert.Contains(t, string(body), "letswatch_dashboard_fallbacks_total")
}
