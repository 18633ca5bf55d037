package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(AlertsCreatedTotal.WithLabelValues("new_match"))
	AlertsCreatedTotal.WithLabelValues("new_match").Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(AlertsCreatedTotal.WithLabelValues("new_match")))

	ScanRunsTotal.WithLabelValues("manual", "ok").Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(ScanRunsTotal.WithLabelValues("manual", "ok")), 1.0)
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	LLMRequestsTotal.WithLabelValues("claude", "ok").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "llm_requests_total"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("boom")))
}
