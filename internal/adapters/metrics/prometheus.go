package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "powerwatch"

// PrometheusCollector implements ports.MetricsCollector backed by Prometheus.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	gatherer  prometheus.Gatherer
	namespace string
	once      sync.Once

	heartbeats      prometheus.Counter
	lastHeartbeat   prometheus.Gauge
	ticks           prometheus.Counter
	tickFailures    prometheus.Counter
	misses          prometheus.Gauge
	sinceHeartbeat  prometheus.Gauge
	signalPresent   prometheus.Gauge
	transitions     *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	deliveryLatency prometheus.Histogram
	pruned          prometheus.Counter
	persistFailures *prometheus.CounterVec
}

var _ ports.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a collector registering into reg.
//
// A nil reg uses a fresh registry with the Go and process collectors, so
// several collectors can coexist in one process (tests).
func NewPrometheus(reg *prometheus.Registry, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	p := &PrometheusCollector{reg: reg, gatherer: reg, namespace: namespace}
	p.ensureRegistered()
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.heartbeats = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "heartbeat",
			Name:      "received_total",
			Help:      "Total authenticated heartbeats received.",
		})
		p.lastHeartbeat = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "heartbeat",
			Name:      "last_received_timestamp_seconds",
			Help:      "Unix time of the last heartbeat.",
		})

		p.ticks = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "monitor",
			Name:      "ticks_total",
			Help:      "Total monitor evaluations.",
		})
		p.tickFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "monitor",
			Name:      "tick_failures_total",
			Help:      "Monitor evaluations that failed or panicked.",
		})
		p.misses = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "monitor",
			Name:      "consecutive_misses",
			Help:      "Current number of consecutive missed ticks.",
		})
		p.sinceHeartbeat = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "monitor",
			Name:      "seconds_since_heartbeat",
			Help:      "Heartbeat age observed by the last tick.",
		})
		p.signalPresent = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      "signal_present",
			Help:      "1 while the signal is considered present, 0 otherwise.",
		})
		p.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "monitor",
			Name:      "transitions_total",
			Help:      "Confirmed signal transitions by kind.",
		}, []string{"kind"})

		p.deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification delivery attempts by result (success,failure).",
		}, []string{"result"})
		p.deliveryLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "notify",
			Name:      "delivery_latency_seconds",
			Help:      "Latency of single notification deliveries in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 9), // 50ms .. ~12.8s
		})
		p.pruned = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "notify",
			Name:      "recipients_pruned_total",
			Help:      "Recipients unsubscribed after a failed delivery.",
		})

		p.persistFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "failures_total",
			Help:      "Storage operation failures by operation.",
		}, []string{"op"})

		p.reg.MustRegister(p.heartbeats)
		p.reg.MustRegister(p.lastHeartbeat)
		p.reg.MustRegister(p.ticks)
		p.reg.MustRegister(p.tickFailures)
		p.reg.MustRegister(p.misses)
		p.reg.MustRegister(p.sinceHeartbeat)
		p.reg.MustRegister(p.signalPresent)
		p.reg.MustRegister(p.transitions)
		p.reg.MustRegister(p.deliveries)
		p.reg.MustRegister(p.deliveryLatency)
		p.reg.MustRegister(p.pruned)
		p.reg.MustRegister(p.persistFailures)
	})
}

func (p *PrometheusCollector) HeartbeatReceived() {
	p.heartbeats.Inc()
	p.lastHeartbeat.SetToCurrentTime()
}

func (p *PrometheusCollector) TickEvaluated(misses int, elapsed time.Duration) {
	p.ticks.Inc()
	p.misses.Set(float64(misses))
	p.sinceHeartbeat.Set(elapsed.Seconds())
}

func (p *PrometheusCollector) TickFailed() {
	p.tickFailures.Inc()
}

func (p *PrometheusCollector) SignalState(present bool) {
	if present {
		p.signalPresent.Set(1)
		return
	}
	p.signalPresent.Set(0)
}

func (p *PrometheusCollector) Transition(kind domain.EventKind) {
	p.transitions.WithLabelValues(kind.String()).Inc()
}

func (p *PrometheusCollector) DeliveryResult(ok bool, d time.Duration) {
	result := "success"
	if !ok {
		result = "failure"
	}
	p.deliveries.WithLabelValues(result).Inc()
	p.deliveryLatency.Observe(d.Seconds())
}

func (p *PrometheusCollector) RecipientsPruned(n int) {
	if n > 0 {
		p.pruned.Add(float64(n))
	}
}

func (p *PrometheusCollector) PersistFailed(op string) {
	p.persistFailures.WithLabelValues(op).Inc()
}
