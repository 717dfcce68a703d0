package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "clube")

	m.ObserveHTTP("GET", "/api/products", 200, 10*time.Millisecond)
	m.Purchase("created")
	m.Purchase("created")
	m.CashbackMessage("ack")
	m.CashbackDistributed(12.5)
	m.TenantPoolSize(3)
	m.OrderSynced("updated")
	m.MailSent("log", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.purchases.WithLabelValues("created")))
	assert.Equal(t, 12.5, testutil.ToFloat64(m.cashbackAmount))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.tenantPoolSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/products", "200")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
		m.Purchase("created")
		m.CashbackMessage("ack")
		m.CashbackDistributed(1)
		m.TenantPoolSize(1)
		m.OrderSynced("failed")
		m.MailSent("log", false)
	})
}
