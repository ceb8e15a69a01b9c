// Package promadapters implements projector.MetricsCollector on a Prometheus registry.
package promadapters

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AntonStoeckl/process-projector-go/projector"
)

var ErrNilRegisterer = errors.New("nil prometheus registerer supplied")

// MetricsCollector maps the projector metrics onto Prometheus vectors:
//   - RecordDuration -> HistogramVec in seconds
//   - IncrementCounter -> CounterVec
//   - RecordValue -> GaugeVec
//
// A vector is registered on first use with the label names of that first call.
// Later calls with other label names, or metrics the registerer rejects, are dropped and counted in Dropped.
type MetricsCollector struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	histograms map[string]*prometheus.HistogramVec
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	dropped    int
}

// NewMetricsCollector creates a collector that registers its vectors with registerer.
func NewMetricsCollector(registerer prometheus.Registerer) (*MetricsCollector, error) {
	if registerer == nil {
		return nil, ErrNilRegisterer
	}

	return &MetricsCollector{
		registerer: registerer,
		histograms: make(map[string]*prometheus.HistogramVec),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}, nil
}

func (m *MetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	vec, ok := m.histograms[metric]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metric,
			Help:    "Duration of " + metric,
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, labelNames(labels))

		if !m.register(vec) {
			return
		}
		m.histograms[metric] = vec
	}

	observer, err := vec.GetMetricWith(labels)
	if err != nil {
		m.dropped++
		return
	}

	observer.Observe(duration.Seconds())
}

func (m *MetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	vec, ok := m.counters[metric]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metric,
			Help: "Count of " + metric,
		}, labelNames(labels))

		if !m.register(vec) {
			return
		}
		m.counters[metric] = vec
	}

	counter, err := vec.GetMetricWith(labels)
	if err != nil {
		m.dropped++
		return
	}

	counter.Inc()
}

func (m *MetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	vec, ok := m.gauges[metric]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metric,
			Help: "Current value of " + metric,
		}, labelNames(labels))

		if !m.register(vec) {
			return
		}
		m.gauges[metric] = vec
	}

	gauge, err := vec.GetMetricWith(labels)
	if err != nil {
		m.dropped++
		return
	}

	gauge.Set(value)
}

// Dropped returns the number of measurements that could not be recorded.
func (m *MetricsCollector) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dropped
}

// register must be called with mu held.
func (m *MetricsCollector) register(collector prometheus.Collector) bool {
	if err := m.registerer.Register(collector); err != nil {
		m.dropped++
		return false
	}

	return true
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

var _ projector.MetricsCollector = (*MetricsCollector)(nil)
