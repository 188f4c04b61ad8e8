// Package observability counts pipeline outcomes in Prometheus metrics.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baxromumarov/tabscrape/internal/httpx"
)

const namespace = "tabscrape"

type StatsSnapshot struct {
	Fetches           uint64            `json:"fetches"`
	FetchErrors       uint64            `json:"fetch_errors"`
	BytesFetched      uint64            `json:"bytes_fetched"`
	TablesAssembled   uint64            `json:"tables_assembled"`
	RowsAssembled     uint64            `json:"rows_assembled"`
	ErrorsTotal       uint64            `json:"errors_total"`
	ErrorsByKind      map[string]uint64 `json:"errors_by_kind,omitempty"`
	ErrorsByComponent map[string]uint64 `json:"errors_by_component,omitempty"`
}

// Metrics owns a private registry so tests and embedded uses never collide on the
// global one. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchBytes    prometheus.Counter
	fetchDuration *prometheus.HistogramVec
	tables        *prometheus.CounterVec
	rows          prometheus.Counter
	errors        *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Fetches by backend and outcome.",
		}, []string{"backend", "outcome"}),
		fetchBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_bytes_total",
			Help:      "Response body bytes received.",
		}),
		fetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Fetch latency by backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
		tables: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tables_assembled_total",
			Help:      "Tables assembled by pipeline mode.",
		}, []string{"mode"}),
		rows: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_assembled_total",
			Help:      "Rows across all assembled tables.",
		}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by kind and component.",
		}, []string{"kind", "component"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveFetch records one fetch. err is classified with ClassifyError.
func (m *Metrics) ObserveFetch(backend string, res *httpx.Result, err error, took time.Duration) {
	if m == nil {
		return
	}
	if backend == "" {
		backend = httpx.BackendColly
	}
	m.fetchDuration.WithLabelValues(backend).Observe(took.Seconds())
	if err != nil {
		m.fetches.WithLabelValues(backend, ClassifyError(err)).Inc()
		return
	}
	m.fetches.WithLabelValues(backend, "ok").Inc()
	if res != nil {
		m.fetchBytes.Add(float64(len(res.Body)))
	}
}

func (m *Metrics) IncTable(mode string, rows int) {
	if m == nil {
		return
	}
	if mode == "" {
		mode = "unknown"
	}
	m.tables.WithLabelValues(mode).Inc()
	m.rows.Add(float64(rows))
}

func (m *Metrics) IncError(kind, component string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = ErrorUnknown
	}
	if component == "" {
		component = "unknown"
	}
	m.errors.WithLabelValues(kind, component).Inc()
}

// Snapshot summarizes the counters for JSON status endpoints.
func (m *Metrics) Snapshot() StatsSnapshot {
	s := StatsSnapshot{
		ErrorsByKind:      map[string]uint64{},
		ErrorsByComponent: map[string]uint64{},
	}
	if m == nil {
		return s
	}
	families, err := m.registry.Gather()
	if err != nil {
		return s
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			v := uint64(metric.GetCounter().GetValue())
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			switch mf.GetName() {
			case namespace + "_fetches_total":
				s.Fetches += v
				if labels["outcome"] != "ok" {
					s.FetchErrors += v
				}
			case namespace + "_fetch_bytes_total":
				s.BytesFetched += v
			case namespace + "_tables_assembled_total":
				s.TablesAssembled += v
			case namespace + "_rows_assembled_total":
				s.RowsAssembled += v
			case namespace + "_errors_total":
				s.ErrorsTotal += v
				s.ErrorsByKind[labels["kind"]] += v
				s.ErrorsByComponent[labels["component"]] += v
			}
		}
	}
	return s
}

// String renders the snapshot on one line for logs.
func (s StatsSnapshot) String() string {
	return "fetches=" + strconv.FormatUint(s.Fetches, 10) +
		" fetch_errors=" + strconv.FormatUint(s.FetchErrors, 10) +
		" tables=" + strconv.FormatUint(s.TablesAssembled, 10) +
		" rows=" + strconv.FormatUint(s.RowsAssembled, 10) +
		" errors=" + strconv.FormatUint(s.ErrorsTotal, 10)
}
