package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusProvider implements Provider on top of
// github.com/prometheus/client_golang, registering instruments with a
// caller-supplied *prometheus.Registry lazily, the first time each name is
// requested (mirroring BasicProvider's create-once-by-name behavior).
type PrometheusProvider struct {
	reg *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	updowns    map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// prometheusCounter adapts prometheus.Counter's Add(float64) to Counter's
// Add(int64).
type prometheusCounter struct {
	c prometheus.Counter
}

func (c prometheusCounter) Add(n int64) { c.c.Add(float64(n)) }

// prometheusHistogram adapts prometheus.Histogram's Observe(float64) to
// Histogram's Record(float64).
type prometheusHistogram struct {
	h prometheus.Histogram
}

func (h prometheusHistogram) Record(v float64) { h.h.Observe(v) }

// NewPrometheusProvider wraps reg. Pass prometheus.NewRegistry() for an
// isolated registry, or prometheus.DefaultRegisterer's registry to expose
// instruments on the process-wide /metrics endpoint.
func NewPrometheusProvider(reg *prometheus.Registry) *PrometheusProvider {
	return &PrometheusProvider{
		reg:        reg,
		counters:   make(map[string]prometheus.Counter),
		updowns:    make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

func (p *PrometheusProvider) Counter(name string, opts ...InstrumentOption) Counter {
	cfg := applyOptions(opts)
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.counters[name]; ok {
		return prometheusCounter{c}
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        name,
		Help:        helpOrName(cfg.Description, name),
		ConstLabels: cfg.Attributes,
	})
	p.reg.MustRegister(c)
	p.counters[name] = c
	return prometheusCounter{c}
}

func (p *PrometheusProvider) UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter {
	cfg := applyOptions(opts)
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.updowns[name]; ok {
		return prometheusGauge{g}
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        name,
		Help:        helpOrName(cfg.Description, name),
		ConstLabels: cfg.Attributes,
	})
	p.reg.MustRegister(g)
	p.updowns[name] = g
	return prometheusGauge{g}
}

func (p *PrometheusProvider) Histogram(name string, opts ...InstrumentOption) Histogram {
	cfg := applyOptions(opts)
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.histograms[name]; ok {
		return prometheusHistogram{h}
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        name,
		Help:        helpOrName(cfg.Description, name),
		ConstLabels: cfg.Attributes,
	})
	p.reg.MustRegister(h)
	p.histograms[name] = h
	return prometheusHistogram{h}
}

func helpOrName(desc, name string) string {
	if desc != "" {
		return desc
	}
	return name
}

// prometheusGauge adapts prometheus.Gauge's Set/Add-based API to the
// UpDownCounter interface's Add(n int64).
type prometheusGauge struct {
	g prometheus.Gauge
}

func (g prometheusGauge) Add(n int64) { g.g.Add(float64(n)) }
