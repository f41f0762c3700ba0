// Copyright (c) 2024 Netskope, Inc. All rights reserved.

// Package metrics records export progress as Prometheus metrics. A nil
// *Collector is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "s1export"

// Collector owns the export metrics and the registry they live in.
type Collector struct {
	registry *prometheus.Registry

	pages          *prometheus.CounterVec
	records        *prometheus.CounterVec
	streams        *prometheus.CounterVec
	batches        *prometheus.CounterVec
	streamDuration *prometheus.HistogramVec
	jobDuration    *prometheus.HistogramVec
	lastSuccess    *prometheus.GaugeVec
}

// NewCollector registers the export metrics on registry. A nil registry gets
// a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Console pages received, by report and data type.",
		}, []string{"report", "data_type"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records written to file groups, by report and data type.",
		}, []string{"report", "data_type"}),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Finished export streams, by report, data type and outcome.",
		}, []string{"report", "data_type", "outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scope_batches_total",
			Help:      "Scope batches run, by report and dimension.",
		}, []string{"report", "dimension"}),
		streamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Wall time of one export stream.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"report"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of one export job.",
			Buckets:   []float64{1, 10, 60, 300, 900, 3600},
		}, []string{"report"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_job_timestamp_seconds",
			Help:      "Unix time the last job of a report finished.",
		}, []string{"report"}),
	}

	registry.MustRegister(c.pages, c.records, c.streams, c.batches, c.streamDuration, c.jobDuration, c.lastSuccess)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordPage counts one received page and its records.
func (c *Collector) RecordPage(report, dataType string, records int) {
	if c == nil {
		return
	}
	c.pages.WithLabelValues(report, dataType).Inc()
	c.records.WithLabelValues(report, dataType).Add(float64(records))
}

// RecordStream counts a finished stream. outcome is "completed" or "aborted".
func (c *Collector) RecordStream(report, dataType, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.streams.WithLabelValues(report, dataType, outcome).Inc()
	c.streamDuration.WithLabelValues(report).Observe(elapsed.Seconds())
}

// RecordBatch counts one scope batch.
func (c *Collector) RecordBatch(report, dimension string) {
	if c == nil {
		return
	}
	c.batches.WithLabelValues(report, dimension).Inc()
}

// RecordJob observes a finished job.
func (c *Collector) RecordJob(report string, elapsed time.Duration, finished time.Time) {
	if c == nil {
		return
	}
	c.jobDuration.WithLabelValues(report).Observe(elapsed.Seconds())
	c.lastSuccess.WithLabelValues(report).Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
