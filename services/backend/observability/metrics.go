// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the backend.
//
// Metrics are exposed via the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "codematrix"

// BackendMetrics holds all Prometheus metrics for the backend service.
// Initialize once at startup via InitMetrics.
type BackendMetrics struct {
	// IngestionsTotal counts ingestion jobs by terminal outcome.
	// Labels: outcome (ready, error, superseded)
	IngestionsTotal *prometheus.CounterVec

	// IngestionDurationSeconds measures wall-clock time of ingestion jobs.
	// Labels: outcome (ready, error)
	IngestionDurationSeconds *prometheus.HistogramVec

	// IndexedFragments tracks the fragment count of the active index.
	IndexedFragments prometheus.Gauge

	// ChatRequestsTotal counts chat requests by status.
	// Labels: status (success, no_index, error)
	ChatRequestsTotal *prometheus.CounterVec

	// GenerationDurationSeconds measures model generation latency.
	// Labels: endpoint (chat, explain)
	GenerationDurationSeconds *prometheus.HistogramVec

	// ScansTotal counts security scans by aggregated risk level.
	// Labels: risk_level
	ScansTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, populated by InitMetrics.
var DefaultMetrics *BackendMetrics

// InitMetrics creates and registers all backend metrics. Call once at
// startup; a second call panics on duplicate registration.
func InitMetrics() *BackendMetrics {
	DefaultMetrics = &BackendMetrics{
		IngestionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ingestions_total",
				Help:      "Total ingestion jobs by terminal outcome",
			},
			[]string{"outcome"},
		),

		IngestionDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "ingestion_duration_seconds",
				Help:      "Wall-clock duration of ingestion jobs",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"outcome"},
		),

		IndexedFragments: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "indexed_fragments",
				Help:      "Fragment count of the active index",
			},
		),

		ChatRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "chat_requests_total",
				Help:      "Total chat requests by status",
			},
			[]string{"status"},
		),

		GenerationDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "generation_duration_seconds",
				Help:      "Model generation latency by endpoint",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"endpoint"},
		),

		ScansTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "security_scans_total",
				Help:      "Total security scans by aggregated risk level",
			},
			[]string{"risk_level"},
		),
	}

	return DefaultMetrics
}

// RecordChat records a chat request outcome. Safe to call when metrics
// were never initialized, which keeps handler tests free of registry
// setup.
func RecordChat(status string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ChatRequestsTotal.WithLabelValues(status).Inc()
}

// RecordScan records one security scan.
func RecordScan(riskLevel string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ScansTotal.WithLabelValues(riskLevel).Inc()
}

// RecordGeneration observes generation latency for an endpoint.
func RecordGeneration(endpoint string, seconds float64) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.GenerationDurationSeconds.WithLabelValues(endpoint).Observe(seconds)
}

// RecordIngestion records a finished ingestion job.
func RecordIngestion(outcome string, seconds float64) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.IngestionsTotal.WithLabelValues(outcome).Inc()
	if outcome != "superseded" {
		DefaultMetrics.IngestionDurationSeconds.WithLabelValues(outcome).Observe(seconds)
	}
}

// SetIndexedFragments updates the active index size gauge.
func SetIndexedFragments(n int) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.IndexedFragments.Set(float64(n))
}
