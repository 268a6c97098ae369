package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics of the reconciliation core, the
// layout loop, ingest and telemetry.
type Collector struct {
	gatherer prometheus.Gatherer

	Snapshots         *prometheus.CounterVec
	ReconcileDuration prometheus.Histogram
	Changes           *prometheus.CounterVec
	LinksDropped      prometheus.Counter

	Routers prometheus.Gauge
	Links   prometheus.Gauge

	Ticks   prometheus.Counter
	Reseeds prometheus.Counter
	Alpha   prometheus.Gauge

	IngestMessages  *prometheus.CounterVec
	IngestReconnect *prometheus.CounterVec

	TelemetrySamples *prometheus.CounterVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil. Registering twice against the same registry reuses the
// existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.Snapshots, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricviz_snapshots_total",
		Help: "Snapshots applied, labeled by whether they changed the topology.",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if c.ReconcileDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fabricviz_reconcile_duration_seconds",
		Help:    "Time spent reconciling one snapshot.",
		Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})); err != nil {
		return nil, err
	}
	if c.Changes, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricviz_topology_changes_total",
		Help: "Routers and links added or removed, labeled by kind and op.",
	}, []string{"kind", "op"})); err != nil {
		return nil, err
	}
	if c.LinksDropped, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fabricviz_links_dropped_total",
		Help: "Link entries skipped because an endpoint router did not exist.",
	})); err != nil {
		return nil, err
	}
	if c.Routers, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fabricviz_routers",
		Help: "Current number of routers.",
	})); err != nil {
		return nil, err
	}
	if c.Links, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fabricviz_links",
		Help: "Current number of links.",
	})); err != nil {
		return nil, err
	}
	if c.Ticks, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fabricviz_layout_ticks_total",
		Help: "Layout ticks executed.",
	})); err != nil {
		return nil, err
	}
	if c.Reseeds, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fabricviz_layout_reseeds_total",
		Help: "Times the simulation was re-seeded after a structural change.",
	})); err != nil {
		return nil, err
	}
	if c.Alpha, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fabricviz_layout_alpha",
		Help: "Current simulation temperature.",
	})); err != nil {
		return nil, err
	}
	if c.IngestMessages, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricviz_ingest_messages_total",
		Help: "Messages received from ingest sources, labeled by source and result.",
	}, []string{"source", "result"})); err != nil {
		return nil, err
	}
	if c.IngestReconnect, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricviz_ingest_reconnects_total",
		Help: "Ingest connection attempts that failed and were retried.",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if c.TelemetrySamples, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricviz_telemetry_samples_total",
		Help: "Metrics payloads forwarded to telemetry, labeled by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}

	return c, nil
}

// Handler returns an HTTP handler exposing the collector's registry
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// ObserveSnapshot records one reconciliation
func (c *Collector) ObserveSnapshot(changed bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	result := "unchanged"
	if changed {
		result = "changed"
	}
	c.Snapshots.WithLabelValues(result).Inc()
	c.ReconcileDuration.Observe(elapsed.Seconds())
}

// ObserveChanges records counts of added/removed entities and dropped links
func (c *Collector) ObserveChanges(routersAdded, routersRemoved, linksAdded, linksRemoved, linksDropped int) {
	if c == nil {
		return
	}
	c.Changes.WithLabelValues("router", "add").Add(float64(routersAdded))
	c.Changes.WithLabelValues("router", "remove").Add(float64(routersRemoved))
	c.Changes.WithLabelValues("link", "add").Add(float64(linksAdded))
	c.Changes.WithLabelValues("link", "remove").Add(float64(linksRemoved))
	c.LinksDropped.Add(float64(linksDropped))
}

// SetTopologySize records the current store size
func (c *Collector) SetTopologySize(routers, links int) {
	if c == nil {
		return
	}
	c.Routers.Set(float64(routers))
	c.Links.Set(float64(links))
}

// ObserveTick implements layout.Observer
func (c *Collector) ObserveTick(alpha float64, moved bool) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.Alpha.Set(alpha)
}

// ObserveReseed implements layout.Observer
func (c *Collector) ObserveReseed(nodes, links int) {
	if c == nil {
		return
	}
	c.Reseeds.Inc()
}

// ObserveIngest records one received message
func (c *Collector) ObserveIngest(source string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.IngestMessages.WithLabelValues(source, result).Inc()
}

// ObserveReconnect records one failed connection attempt
func (c *Collector) ObserveReconnect(source string) {
	if c == nil {
		return
	}
	c.IngestReconnect.WithLabelValues(source).Inc()
}

// ObserveTelemetry records one forwarded metrics payload
func (c *Collector) ObserveTelemetry(stored bool) {
	if c == nil {
		return
	}
	result := "stored"
	if !stored {
		result = "dropped"
	}
	c.TelemetrySamples.WithLabelValues(result).Inc()
}

func registerCounterVec(reg prometheus.Registerer, cv *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(cv); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register counter vec: %w", err)
	}
	return cv, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register counter: %w", err)
	}
	return c, nil
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register gauge: %w", err)
	}
	return g, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register histogram: %w", err)
	}
	return h, nil
}
