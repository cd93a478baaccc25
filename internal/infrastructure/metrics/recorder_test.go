package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := NewRecorder()

	r.RenewalAttempt("renewed")
	r.RenewalAttempt("renewed")
	r.RenewalAttempt("failed")
	r.GatewayEvent("succeeded", "applied")
	r.GatewayEvent("succeeded", "duplicate")
	r.TieringRun("purchase")
	r.TierQueueRepaired()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.renewals.WithLabelValues("renewed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.renewals.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.gatewayEvents.WithLabelValues("succeeded", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tieringRuns.WithLabelValues("purchase")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.queueRepairs))
}

func TestRecordersDoNotShareState(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	a.TierQueueRepaired()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.queueRepairs))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.queueRepairs))
}

func TestHandlerExposesCounters(t *testing.T) {
	r := NewRecorder()
	r.RenewalAttempt("skipped")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rackgrid_renewals_total{outcome="skipped"} 1`)
	assert.Contains(t, string(body), "rackgrid_tier_queue_repairs_total 0")
}
