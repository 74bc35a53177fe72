package scoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report scoring activity.
type Metrics struct {
	documentsTotal    *prometheus.CounterVec
	dimensionOutcomes *prometheus.CounterVec
	repairStrategies  *prometheus.CounterVec
	documentDuration  prometheus.Histogram
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. Collectors are created only once to avoid
// duplicate registration panics when several orchestrators exist (unit
// tests, multiple batches).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Callers needing unique metric names (tests) supply a fresh registry.
// Registration errors panic, mirroring promauto semantics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resil",
			Subsystem: "scoring",
			Name:      "documents_total",
			Help:      "Documents scored, by terminal record status.",
		},
		[]string{"status"},
	)
	dimensionOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resil",
			Subsystem: "scoring",
			Name:      "dimension_outcomes_total",
			Help:      "Dimension pass outcomes.",
		},
		[]string{"dimension", "status"},
	)
	repairStrategies := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resil",
			Subsystem: "scoring",
			Name:      "repair_strategy_total",
			Help:      "Which repair strategy recovered each model response.",
		},
		[]string{"strategy"},
	)
	documentDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "resil",
			Subsystem: "scoring",
			Name:      "document_duration_seconds",
			Help:      "Wall time to score one document end to end.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	collectors := []prometheus.Collector{documentsTotal, dimensionOutcomes, repairStrategies, documentDuration}
	for i, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			already, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				panic(err)
			}
			switch i {
			case 0:
				documentsTotal = already.ExistingCollector.(*prometheus.CounterVec)
			case 1:
				dimensionOutcomes = already.ExistingCollector.(*prometheus.CounterVec)
			case 2:
				repairStrategies = already.ExistingCollector.(*prometheus.CounterVec)
			case 3:
				documentDuration = already.ExistingCollector.(prometheus.Histogram)
			}
		}
	}

	return &Metrics{
		documentsTotal:    documentsTotal,
		dimensionOutcomes: dimensionOutcomes,
		repairStrategies:  repairStrategies,
		documentDuration:  documentDuration,
	}
}

func (m *Metrics) observeDocument(status string, seconds float64) {
	if m == nil {
		return
	}
	m.documentsTotal.WithLabelValues(status).Inc()
	m.documentDuration.Observe(seconds)
}

func (m *Metrics) observeDimension(dimension, status string) {
	if m == nil {
		return
	}
	m.dimensionOutcomes.WithLabelValues(dimension, status).Inc()
}

func (m *Metrics) observeRepair(strategy string) {
	if m == nil || strategy == "" {
		return
	}
	m.repairStrategies.WithLabelValues(strategy).Inc()
}
