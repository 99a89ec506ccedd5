package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Exposed(t *testing.T) {
	m := New()
	m.ObserveOperation("clean_bg", "success", 3*time.Second)
	m.ObserveOperation("clean_bg", "failed", time.Second)
	m.CreditsSpent("ai_model", 4)
	m.CreditsSpent("ai_model", 0)
	m.PriceCheck("success")
	m.Import("vinted_api")
	m.HTTPRequest("/api/profile", http.StatusOK)

	body := scrape(t, m)
	assert.Contains(t, body, `vintifi_image_operations_total{operation="clean_bg",outcome="success"} 1`)
	assert.Contains(t, body, `vintifi_image_operations_total{operation="clean_bg",outcome="failed"} 1`)
	assert.Contains(t, body, `vintifi_image_operation_seconds_count{operation="clean_bg"} 1`)
	assert.Contains(t, body, `vintifi_credits_spent_total{operation="ai_model"} 4`)
	assert.Contains(t, body, `vintifi_price_checks_total{outcome="success"} 1`)
	assert.Contains(t, body, `vintifi_imports_total{source="vinted_api"} 1`)
	assert.Contains(t, body, `vintifi_http_requests_total{code="200",route="/api/profile"} 1`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("x", "success", time.Second)
		m.CreditsSpent("x", 1)
		m.PriceCheck("failed")
		m.Import("none")
		m.HTTPRequest("/", 500)
	})
}
