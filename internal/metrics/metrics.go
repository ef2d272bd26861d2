// Package metrics provides Prometheus metrics for alertack.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "alertack"

// Result label values.
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultAborted   = "aborted"
	ResultCancelled = "cancelled"
	ResultSkipped   = "skipped"
)

// Reconciliation metrics
var (
	// RunsTotal counts reconciliation runs by result (success, aborted, cancelled).
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total reconciliation runs by result",
		},
		[]string{"result"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a reconciliation run",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	AcksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acks_total",
			Help:      "Acknowledgment attempts by result",
		},
		[]string{"result"},
	)

	// AckDuration only observes attempts that reached the backend.
	AckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ack_duration_seconds",
			Help:      "Acknowledgment request latency in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
	)
)

// Notification and storage metrics
var (
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Email notifications by result (success, failure, skipped)",
		},
		[]string{"result"},
	)

	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed store writes by operation",
		},
		[]string{"op"},
	)
)
