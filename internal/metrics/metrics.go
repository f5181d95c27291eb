package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reason labels for RequestErrors. PaginationLimit is the one that
// needs operator attention: the search was cut off before uniqueness
// could be confirmed, so the service refused to guess.
const (
	ReasonInput           = "input"
	ReasonProjectNotFound = "project_not_found"
	ReasonPaginationLimit = "pagination_limit"
	ReasonRateLimited     = "rate_limited"
	ReasonAuth            = "auth"
	ReasonRemote          = "remote"
	ReasonCancelled       = "cancelled"
)

var (
	RequestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "phalerts_request_latency_seconds",
		Help: "Latency of incoming alert notification requests.",
	})

	RequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phalerts_request_errors_total",
		Help: "Number of request processing errors by reason.",
	}, []string{"reason"})

	ConduitLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "phalerts_conduit_latency_seconds",
		Help: "Latency of outgoing Conduit API calls.",
	}, []string{"api_call"})
)

// ObserveConduitCall records the duration of a single Conduit call.
func ObserveConduitCall(method string, start time.Time) {
	ConduitLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// CountError increments the request error counter for reason.
func CountError(reason string) {
	RequestErrors.WithLabelValues(reason).Inc()
}
