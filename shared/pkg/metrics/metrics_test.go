package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Recorders(t *testing.T) {
	m := New(DefaultConfig("fulfillment-service"))

	m.RecordLedgerOperation("reserve", "success")
	m.RecordLedgerOperation("reserve", "success")
	m.RecordLedgerOperation("reserve", "INSUFFICIENT_STOCK")
	m.RecordAlertResolved()
	m.RecordReturnCompleted("REFUND", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LedgerOperations.WithLabelValues("fulfillment-service", "reserve", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerOperations.WithLabelValues("fulfillment-service", "reserve", "INSUFFICIENT_STOCK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsResolved))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.UnitsRestocked))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLedgerOperation("commit", "success")
		m.RecordOrderTransition("PENDING", "CONFIRMED")
		m.RecordHTTPRequest("GET", "/health", 200, 0)
	})
}
