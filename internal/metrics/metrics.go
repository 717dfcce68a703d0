// Package metrics exposes the Prometheus collectors of the API and the jobs.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	purchases        *prometheus.CounterVec
	cashbackMessages *prometheus.CounterVec
	cashbackAmount   prometheus.Counter
	tenantPoolSize   prometheus.Gauge
	ordersSynced     *prometheus.CounterVec
	mailsSent        *prometheus.CounterVec
}

// New registers the collectors on reg under namespace
func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		purchases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_total",
			Help:      "Purchase attempts by outcome.",
		}, []string{"result"}),

		cashbackMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cashback_messages_total",
			Help:      "Cashback queue messages by outcome (ack, requeue, reject, duplicate).",
		}, []string{"outcome"}),

		cashbackAmount: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cashback_distributed_amount_total",
			Help:      "Sum of cashback distributed, in currency units.",
		}),

		tenantPoolSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tenant_connections",
			Help:      "Open tenant database handles.",
		}),

		ordersSynced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_orders_synced_total",
			Help:      "Exchange orders checked against the chain by outcome (unchanged, updated, failed).",
		}, []string{"outcome"}),

		mailsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mails_sent_total",
			Help:      "Emails handed to the provider by outcome.",
		}, []string{"provider", "success"}),
	}
}

// ObserveHTTP records one finished request
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Purchase records a purchase attempt outcome
func (m *Metrics) Purchase(result string) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(result).Inc()
}

// CashbackMessage records how a queue message was settled
func (m *Metrics) CashbackMessage(outcome string) {
	if m == nil {
		return
	}
	m.cashbackMessages.WithLabelValues(outcome).Inc()
}

// CashbackDistributed adds to the distributed amount
func (m *Metrics) CashbackDistributed(amount float64) {
	if m == nil {
		return
	}
	m.cashbackAmount.Add(amount)
}

// TenantPoolSize sets the number of open tenant handles
func (m *Metrics) TenantPoolSize(size int) {
	if m == nil {
		return
	}
	m.tenantPoolSize.Set(float64(size))
}

// OrderSynced records a reconciliation outcome
func (m *Metrics) OrderSynced(outcome string) {
	if m == nil {
		return
	}
	m.ordersSynced.WithLabelValues(outcome).Inc()
}

// MailSent records an email delivery attempt
func (m *Metrics) MailSent(provider string, success bool) {
	if m == nil {
		return
	}
	m.mailsSent.WithLabelValues(provider, strconv.FormatBool(success)).Inc()
}
