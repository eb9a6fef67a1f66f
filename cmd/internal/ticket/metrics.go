package ticket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "renova_ticket_requests_total",
		Help: "Outbound renewal-service requests by operation and outcome.",
	}, []string{"op", "outcome"})

	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "renova_ticket_request_seconds",
		Help:    "Outbound renewal-service request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)

func observe(op string, status int, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "network"
	case status >= 500:
		outcome = "server_error"
	case status >= 400:
		outcome = "client_error"
	}
	requestsTotal.WithLabelValues(op, outcome).Inc()
}
