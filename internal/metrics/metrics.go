// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mulebridge"

// Search outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeEmpty   = "empty"
	OutcomeStatus  = "status"
)

var (
	searchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of emulex searches by outcome",
		},
		[]string{"outcome"},
	)

	searchRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_request_duration_seconds",
			Help:      "emulex search duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	searchResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_results_total",
			Help:      "Releases returned to callers",
		},
	)

	skippedRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_records_total",
			Help:      "Catalog records dropped because they could not be parsed",
		},
	)

	searchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_total",
			Help:      "Search cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

func init() {
	prometheus.MustRegister(searchRequestsTotal)
	prometheus.MustRegister(searchRequestDuration)
	prometheus.MustRegister(searchResultsTotal)
	prometheus.MustRegister(skippedRecordsTotal)
	prometheus.MustRegister(searchCacheTotal)
}

// ObserveSearch records one search and how long it took.
func ObserveSearch(outcome string, elapsed time.Duration, results int) {
	searchRequestsTotal.WithLabelValues(outcome).Inc()
	searchRequestDuration.Observe(elapsed.Seconds())
	if results > 0 {
		searchResultsTotal.Add(float64(results))
	}
}

// ObserveSkippedRecords counts records dropped from a batch.
func ObserveSkippedRecords(n int) {
	if n > 0 {
		skippedRecordsTotal.Add(float64(n))
	}
}

// ObserveCache counts a search cache lookup.
func ObserveCache(hit bool) {
	if hit {
		searchCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	searchCacheTotal.WithLabelValues("miss").Inc()
}
