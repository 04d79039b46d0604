// Package metrics exposes Prometheus metrics for the dataset server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BuildInfo struct {
	Version   string
	Revision  string
	BuildDate string
}

type Provider struct {
	reg       *prometheus.Registry
	buildInfo *prometheus.GaugeVec

	DatasetsServed *prometheus.CounterVec
	CacheEvents    *prometheus.CounterVec
	ServeDuration  *prometheus.HistogramVec
}

func Init(build BuildInfo) *Provider {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bi := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build info for this binary (value is always 1).",
		},
		[]string{"version", "revision", "build_date"},
	)
	reg.MustRegister(bi)
	if build.Version == "" {
		build.Version = "dev"
	}
	bi.WithLabelValues(build.Version, build.Revision, build.BuildDate).Set(1)

	p := &Provider{reg: reg, buildInfo: bi}

	p.DatasetsServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasets_served_total",
			Help: "Dataset responses by city, dataset name and HTTP status.",
		},
		[]string{"city", "dataset", "status"},
	)
	p.CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_cache_events_total",
			Help: "Dataset cache lookups by outcome (hit, miss, stale).",
		},
		[]string{"outcome"},
	)
	p.ServeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataset_serve_duration_seconds",
			Help:    "Time to serve a dataset request.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"city"},
	)
	reg.MustRegister(p.DatasetsServed, p.CacheEvents, p.ServeDuration)

	return p
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		p.reg.MustRegister(c)
	}
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }
