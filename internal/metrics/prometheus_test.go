package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Records(t *testing.T) {
	c := NewCollector()

	c.RecordTransaction("TRANSFER", "completed", 20*time.Millisecond)
	c.RecordTransaction("TRANSFER", "completed", 10*time.Millisecond)
	c.RecordRisk(0.9, true)
	c.RecordSweep("overdue_loans", 3)
	c.RecordRelay(4, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.transactions.WithLabelValues("TRANSFER", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fraudRejections))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.sweepRecords.WithLabelValues("overdue_loans")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notifications.WithLabelValues("failed")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordTransaction("DEPOSIT", "failed", time.Second)
		c.RecordRisk(0.1, false)
		c.RecordSweep("matured_investments", 1)
		c.RecordRelay(1, 0)
	})
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.RecordSweep("overdue_loans", 2)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `chronobank_sweep_records_total{sweep="overdue_loans"} 2`))
}
