package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lborres/bantay/core"
)

const namespace = "bantay"

// Poll records one sample per finished poll tick. It implements core.PollObserver.
type Poll struct {
	registry *prometheus.Registry
	ticks    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var _ core.PollObserver = (*Poll)(nil)

// New registers the poll collectors plus the Go and process collectors on a private registry
func New() *Poll {
	reg := prometheus.NewRegistry()
	p := &Poll{
		registry: reg,
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Finished poll ticks by view and outcome.",
		}, []string{"view", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_tick_seconds",
			Help:      "Latency of poll fetches by view.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"view"}),
	}
	reg.MustRegister(
		p.ticks,
		p.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Poll) ObserveTick(view string, outcome core.TickOutcome, latency time.Duration) {
	p.ticks.WithLabelValues(view, string(outcome)).Inc()
	if outcome != core.TickDiscarded {
		p.latency.WithLabelValues(view).Observe(latency.Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format
func (p *Poll) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
