package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LogsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logbook_logs_ingested_total",
		Help: "The total number of log records ingested",
	}, []string{"level", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logbook_http_requests_total",
		Help: "Total number of HTTP requests processed",
	}, []string{"status", "method"})
)
