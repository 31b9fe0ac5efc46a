// Package metrics exposes Prometheus instruments for the monetization core.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "creator_ledger"

// OutcomeOK labels a successful operation
const OutcomeOK = "ok"

type Collector struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	riskScores        *prometheus.HistogramVec
	riskBlocks        *prometheus.CounterVec
	replays           *prometheus.CounterVec
	auditDropped      prometheus.Counter
	outboxPublished   *prometheus.CounterVec
	expired           prometheus.Counter
	accessRevoked     prometheus.Counter
	renewals          *prometheus.CounterVec
	paymentEvents     *prometheus.CounterVec
}

// NewCollector registers every instrument on a private registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Monetization operations by outcome code",
		}, []string{"operation", "outcome"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time taken to run a monetization operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		riskScores: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Distribution of risk scores per operation",
			Buckets:   []float64{0, 20, 40, 60, 80, 100},
		}, []string{"operation"}),
		riskBlocks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_blocks_total",
			Help:      "Operations refused by the risk engine, by code",
		}, []string{"operation", "code"}),
		replays: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotent_replays_total",
			Help:      "Requests answered from a stored idempotent result",
		}, []string{"operation"}),
		auditDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_records_dropped_total",
			Help:      "Audit records dropped because the writer queue was full or the write failed",
		}),
		outboxPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_messages_total",
			Help:      "Outbox messages handled by the poller, by outcome",
		}, []string{"outcome"}),
		expired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_expired_total",
			Help:      "Subscriptions expired by the lifecycle sweep",
		}),
		accessRevoked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_grants_revoked_total",
			Help:      "Content access grants removed by expiry or cancellation",
		}),
		renewals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_renewals_total",
			Help:      "Scheduled renewal attempts, by outcome",
		}, []string{"outcome"}),
		paymentEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_confirmations_total",
			Help:      "Provider confirmations consumed, by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveOperation records one finished operation. outcome is OutcomeOK or an error code.
func (c *Collector) ObserveOperation(operation, outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(operation, outcome).Inc()
	c.operationDuration.WithLabelValues(operation).Observe(took.Seconds())
}

func (c *Collector) ObserveRiskScore(operation string, score int) {
	if c == nil {
		return
	}
	c.riskScores.WithLabelValues(operation).Observe(float64(score))
}

func (c *Collector) RiskBlocked(operation, code string) {
	if c == nil {
		return
	}
	c.riskBlocks.WithLabelValues(operation, code).Inc()
}

func (c *Collector) IdempotentReplay(operation string) {
	if c == nil {
		return
	}
	c.replays.WithLabelValues(operation).Inc()
}

func (c *Collector) AuditDropped() {
	if c == nil {
		return
	}
	c.auditDropped.Inc()
}

func (c *Collector) OutboxMessage(outcome string) {
	if c == nil {
		return
	}
	c.outboxPublished.WithLabelValues(outcome).Inc()
}

func (c *Collector) SubscriptionsExpired(expired, revoked int) {
	if c == nil {
		return
	}
	c.expired.Add(float64(expired))
	c.accessRevoked.Add(float64(revoked))
}

func (c *Collector) AccessRevoked(n int64) {
	if c == nil {
		return
	}
	c.accessRevoked.Add(float64(n))
}

func (c *Collector) Renewal(outcome string) {
	if c == nil {
		return
	}
	c.renewals.WithLabelValues(outcome).Inc()
}

func (c *Collector) PaymentConfirmation(outcome string) {
	if c == nil {
		return
	}
	c.paymentEvents.WithLabelValues(outcome).Inc()
}

// Registry exposes the registry for tests and custom exporters
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Value sums the counter (or histogram sample count) of every series of the
// named metric whose labels include the given ones. Missing metrics read as 0.
func (c *Collector) Value(name string, labels map[string]string) float64 {
	if c == nil {
		return 0
	}
	families, err := c.registry.Gather()
	if err != nil {
		return 0
	}
	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	series:
		for _, m := range family.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue series
				}
			}
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return total
}
