// Package metrics defines and registers all custom Prometheus metrics for the
// identity API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry at package init
// through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts password logins.
// Labels:
//   - surface: "api" (bearer token login) or "admin" (panel session login)
//   - result: "success", "invalid_credentials", "inactive", "forbidden", "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by surface and result.",
	},
	[]string{"surface", "result"},
)

// TokenRejectionsTotal counts requests refused by the bearer token gate.
// Label:
//   - reason: "missing", "scheme", "invalid"
var TokenRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_rejections_total",
		Help:      "Total number of requests rejected by the bearer token middleware.",
	},
	[]string{"reason"},
)

// RegistrationsTotal counts self-service registrations.
var RegistrationsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of identities created through open registration.",
	},
)

// ── Repository metrics ────────────────────────────────────────────────────────

// RepositoryOpsTotal counts repository calls.
// Labels:
//   - backend: "sql", "rest" or "mongo"
//   - op: repository method name (e.g. "get", "list")
//   - result: "ok", "not_found", "conflict", "unavailable", "error"
var RepositoryOpsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "repository_operations_total",
		Help:      "Total number of repository operations, by backend, operation and result.",
	},
	[]string{"backend", "op", "result"},
)

// RepositoryDuration measures repository call latency.
var RepositoryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "repository_operation_duration_seconds",
		Help:      "Duration of repository operations.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"backend", "op"},
)

// ── Task metrics ──────────────────────────────────────────────────────────────

// TasksSubmittedTotal counts background tasks accepted by the queue.
var TasksSubmittedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_submitted_total",
		Help:      "Total number of background tasks submitted, by task name.",
	},
	[]string{"task"},
)
