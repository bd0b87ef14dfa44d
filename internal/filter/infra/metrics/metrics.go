package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rrfilter"

// Prometheus records engine and updater activity in a private registry.
type Prometheus struct {
	reg       *prometheus.Registry
	decisions *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	rules     *prometheus.GaugeVec
}

// New creates the collectors and registers them together with the Go and
// process collectors.
func New() (*Prometheus, error) {
	p := &Prometheus{
		reg: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Admission decisions by result and deciding stage.",
		}, []string{"result", "stage"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Filter list refresh attempts by source and result.",
		}, []string{"source", "result"}),
		rules: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rules",
			Help:      "Rules in the published filter set by kind.",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{
		p.decisions,
		p.refreshes,
		p.rules,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := p.reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ObserveDecision counts one admission decision.
func (p *Prometheus) ObserveDecision(stage string, blocked bool) {
	result := "allow"
	if blocked {
		result = "block"
	}
	p.decisions.WithLabelValues(result, stage).Inc()
}

// ObserveRefresh counts one refresh attempt for source. result is one of
// "updated", "not_modified" or "error".
func (p *Prometheus) ObserveRefresh(source, result string) {
	p.refreshes.WithLabelValues(source, result).Inc()
}

// SetRules reports the size of the published filter set.
func (p *Prometheus) SetRules(block, exception, global int) {
	p.rules.WithLabelValues("block").Set(float64(block))
	p.rules.WithLabelValues("exception").Set(float64(exception))
	p.rules.WithLabelValues("global").Set(float64(global))
}

// Registry exposes the underlying registry for tests and extra collectors.
func (p *Prometheus) Registry() *prometheus.Registry { return p.reg }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

// Nop discards all observations.
type Nop struct{}

func (Nop) ObserveDecision(string, bool)  {}
func (Nop) ObserveRefresh(string, string) {}
func (Nop) SetRules(int, int, int)        {}
