package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type workerMetrics struct {
	registry          *prometheus.Registry
	datasetsProcessed prometheus.Counter
	datasetsFailed    prometheus.Counter
	jobsSkipped       prometheus.Counter
	groupsSummarized  prometheus.Counter
	summarizeSeconds  prometheus.Histogram
	peakRSSBytes      prometheus.Gauge
}

func newWorkerMetrics() *workerMetrics {
	m := &workerMetrics{
		registry: prometheus.NewRegistry(),
		datasetsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quartile_worker_datasets_processed_total",
			Help: "Datasets summarized and persisted",
		}),
		datasetsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quartile_worker_datasets_failed_total",
			Help: "Datasets whose processing returned an error",
		}),
		jobsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quartile_worker_jobs_skipped_total",
			Help: "Queue jobs dropped as malformed or foreign",
		}),
		groupsSummarized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quartile_worker_groups_summarized_total",
			Help: "Group summaries written",
		}),
		summarizeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quartile_worker_summarize_seconds",
			Help:    "Time spent computing group summaries",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		peakRSSBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quartile_worker_last_peak_rss_bytes",
			Help: "Peak resident memory observed during the last summarize run",
		}),
	}
	m.registry.MustRegister(
		m.datasetsProcessed,
		m.datasetsFailed,
		m.jobsSkipped,
		m.groupsSummarized,
		m.summarizeSeconds,
		m.peakRSSBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// serveMetrics exposes the registry on /metrics until ctx is done.
func serveMetrics(ctx context.Context, log *Logger, reg *prometheus.Registry, port int) {
	if port == 0 {
		log.Warn("metrics port not specified, using default", "port", defaultMetricsPort)
		port = defaultMetricsPort
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "err", err)
		}
	}()
	log.Info("prometheus metrics exposed", "port", port)
}
