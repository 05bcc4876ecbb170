package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.Decision("1", "approved")
	m.Decision("1", "approved")
	m.PurchaseOrderIssued()
	m.OutboxDelivery("ready_for_payment", "retry")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisionsTotal.WithLabelValues("1", "approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.purchaseOrdersTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxDeliveries.WithLabelValues("ready_for_payment", "retry")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Decision("1", "approved")
		m.Operation("submit_decision", "ok")
		m.PurchaseOrderIssued()
		m.OutboxDelivery("x", "ok")
		m.ExtractionJob("receipt", "success")
		m.ExtractionAttempt("receipt", 1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ExtractionJob("proforma", "success")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `procurement_extraction_jobs_total{kind="proforma",status="success"} 1`)
}
