// Package metrics exposes Prometheus counters for tree mutations, reorganizations and locks.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SharedCode/treestore"
)

// Metrics groups the engine's collectors.
type Metrics struct {
	Mutations       *prometheus.CounterVec
	Reorganizations *prometheus.CounterVec
	Locks           *prometheus.CounterVec
	RowLockWait     prometheus.Histogram
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "treestore_mutations_total",
			Help: "Tree mutations by operation, tree mode and outcome.",
		}, []string{"op", "mode", "outcome"}),
		Reorganizations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "treestore_reorganizations_total",
			Help: "Spreaded boundary reorganization passes.",
		}, []string{"mode"}),
		Locks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "treestore_locks_total",
			Help: "Advisory lock operations by outcome.",
		}, []string{"op", "outcome"}),
		RowLockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "treestore_rowlock_wait_seconds",
			Help:    "Time spent acquiring row locks for update.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

var defaultMetrics *Metrics
var once sync.Once

// Default returns the collectors registered with the default Prometheus registerer.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Outcome maps an error to a low cardinality label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch treestore.CodeOf(err) {
	case treestore.NotFound:
		return "not_found"
	case treestore.InvalidOperation:
		return "invalid"
	case treestore.Denied:
		return "denied"
	case treestore.Capacity:
		return "capacity"
	case treestore.Timeout:
		return "timeout"
	}
	return "error"
}

// ObserveMutation counts a tree mutation.
func (m *Metrics) ObserveMutation(op string, mode treestore.TreeMode, err error) {
	m.Mutations.WithLabelValues(op, mode.String(), Outcome(err)).Inc()
}

// ObserveReorganization counts a reorganization pass.
func (m *Metrics) ObserveReorganization(mode treestore.TreeMode) {
	m.Reorganizations.WithLabelValues(mode.String()).Inc()
}

// ObserveLock counts a lock manager call.
func (m *Metrics) ObserveLock(op string, err error) {
	m.Locks.WithLabelValues(op, Outcome(err)).Inc()
}

// ObserveRowLockWait records a row lock wait.
func (m *Metrics) ObserveRowLockWait(wait time.Duration, _ error) {
	m.RowLockWait.Observe(wait.Seconds())
}
