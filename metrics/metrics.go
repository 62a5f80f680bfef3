// Package metrics provides Prometheus instrumentation for the stores.
//
// A nil *Metrics is valid and records nothing, so stores can take one as an
// optional collaborator.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "drapid"

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the collectors shared by every store in a process.
type Metrics struct {
	operations *prometheus.CounterVec
	records    *prometheus.GaugeVec
	collisions prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Store operations by store, operation and outcome",
		}, []string{"store", "op", "outcome"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Records currently held by each store",
		}, []string{"store"}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hashtable",
			Name:      "collisions_total",
			Help:      "Includes rejected because the slot was already occupied",
		}),
	}
	reg.MustRegister(m.operations, m.records, m.collisions)
	return m
}

// Op counts one operation. A nil err is recorded as OutcomeOK.
func (m *Metrics) Op(store, op string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.operations.WithLabelValues(store, op, outcome).Inc()
}

// Records sets the current record count of a store.
func (m *Metrics) Records(store string, n int) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(store).Set(float64(n))
}

// Collision counts one rejected include.
func (m *Metrics) Collision() {
	if m == nil {
		return
	}
	m.collisions.Inc()
}
