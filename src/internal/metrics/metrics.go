package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "parking"

// Metrics holds the engine's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	Admissions      *prometheus.CounterVec
	Settlements     *prometheus.CounterVec
	Revenue         prometheus.Counter
	PublishFailures *prometheus.CounterVec
}

func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		Admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Admission attempts by vehicle class and outcome.",
		}, []string{"vehicle_class", "outcome"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Sessions processed by close-day sweeps by outcome.",
		}, []string{"outcome"}),
		Revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settled_revenue_total",
			Help:      "Sum of settled session costs.",
		}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Events that could not be delivered, by kind.",
		}, []string{"event"}),
	}

	registerer.MustRegister(m.Admissions, m.Settlements, m.Revenue, m.PublishFailures)
	return m
}

func (m *Metrics) ObserveAdmission(class, outcome string) {
	if m == nil {
		return
	}
	m.Admissions.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) ObserveSettlement(outcome string, amount float64) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(outcome).Inc()
	if amount > 0 {
		m.Revenue.Add(amount)
	}
}

func (m *Metrics) ObservePublishFailure(event string) {
	if m == nil {
		return
	}
	m.PublishFailures.WithLabelValues(event).Inc()
}
