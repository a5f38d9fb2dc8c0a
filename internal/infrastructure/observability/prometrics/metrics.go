package prometrics

import (
	"sync"

	"github.com/Zhima-Mochi/winestore/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry implements observability.Metrics on top of prometheus vectors.
// Keys that were never registered resolve to no-op instruments.
type Registry struct {
	reg        prometheus.Registerer
	namespace  string
	counters   sync.Map // MetricKey -> *prometheus.CounterVec
	histograms sync.Map // MetricKey -> *prometheus.HistogramVec
}

func New(reg prometheus.Registerer, namespace string) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Registry{reg: reg, namespace: namespace}
}

// RegisterDefaults registers every instrument listed in observability.CounterSpecs and HistogramSpecs.
func (r *Registry) RegisterDefaults() *Registry {
	for _, s := range observability.CounterSpecs {
		r.RegisterCounter(s.Key, s.Help, s.Labels...)
	}
	for _, s := range observability.HistogramSpecs {
		r.RegisterHistogram(s.Key, s.Help, prometheus.DefBuckets, s.Labels...)
	}
	return r
}

func (r *Registry) RegisterCounter(key observability.MetricKey, help string, labelKeys ...string) {
	if _, ok := r.counters.Load(key); ok {
		return
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace, Name: string(key), Help: help,
	}, labelKeys)
	r.reg.MustRegister(cv)
	r.counters.Store(key, cv)
}

func (r *Registry) RegisterHistogram(key observability.MetricKey, help string, buckets []float64, labelKeys ...string) {
	if _, ok := r.histograms.Load(key); ok {
		return
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace, Name: string(key), Help: help, Buckets: buckets,
	}, labelKeys)
	r.reg.MustRegister(hv)
	r.histograms.Store(key, hv)
}

func (r *Registry) Counter(key observability.MetricKey) observability.Counter {
	v, ok := r.counters.Load(key)
	if !ok {
		return observability.NopCounter()
	}
	return &counter{v: v.(*prometheus.CounterVec)}
}

func (r *Registry) Histogram(key observability.MetricKey) observability.Histogram {
	v, ok := r.histograms.Load(key)
	if !ok {
		return observability.NopHistogram()
	}
	return &histogram{v: v.(*prometheus.HistogramVec)}
}

type counter struct{ v *prometheus.CounterVec }

func (c *counter) Add(d float64, labels ...observability.Label) {
	m, err := c.v.GetMetricWith(labelMap(labels))
	if err != nil {
		// mismatched label sets are dropped rather than panicking the caller
		return
	}
	m.Add(d)
}

type histogram struct{ v *prometheus.HistogramVec }

func (h *histogram) Observe(v float64, labels ...observability.Label) {
	m, err := h.v.GetMetricWith(labelMap(labels))
	if err != nil {
		return
	}
	m.Observe(v)
}

func labelMap(ls []observability.Label) prometheus.Labels {
	m := make(prometheus.Labels, len(ls))
	for _, l := range ls {
		m[l.Key] = l.Value
	}
	return m
}
