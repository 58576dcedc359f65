package observability

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamMetricsCounters(t *testing.T) {
	m := NewStreamMetrics()

	m.RequestsSent.Inc()
	m.RequestsSent.Inc()
	m.ResponseOutcome.WithLabelValues(OutcomeApplied).Inc()
	m.ResponseOutcome.WithLabelValues(OutcomeStale).Add(3)
	m.SeriesLength.Set(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResponseOutcome.WithLabelValues(OutcomeApplied)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ResponseOutcome.WithLabelValues(OutcomeStale)))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.SeriesLength))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewStreamMetrics()
	m.PointsAppended.Add(7)
	m.SessionsEnded.WithLabelValues(EndReasonRemoteClosed).Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "chartfeed_series_points_appended_total 7")
	assert.Contains(t, string(body), `chartfeed_stream_sessions_ended_total{reason="remote_closed"} 1`)
}
