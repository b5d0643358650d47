package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/codeGROOVE-dev/gifted/pkg/httpcache"
)

const namespace = "gifted"

type metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	resolutions *prometheus.CounterVec
	ideas       prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"route"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_resolutions_total",
			Help:      "Identity resolutions by outcome.",
		}, []string{"outcome"}),
		ideas: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendation_ideas",
			Help:      "Number of ideas returned per recommendation.",
			Buckets:   prometheus.LinearBuckets(0, 2, 9),
		}),
	}

	reg.MustRegister(
		m.requests,
		m.duration,
		m.resolutions,
		m.ideas,
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "httpcache_hits_total",
			Help:      "Fetch cache hits.",
		}, func() float64 { return float64(httpcache.CacheStats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "httpcache_misses_total",
			Help:      "Fetch cache misses.",
		}, func() float64 { return float64(httpcache.CacheStats().Misses) }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
