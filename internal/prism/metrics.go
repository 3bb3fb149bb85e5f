package prism

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	exporterSubsystem = "nutanix_exporter"

	apiRequestsTotal   = "api_requests_total"
	apiRequestDuration = "api_request_duration_seconds"
	scrapeErrorsTotal  = "scrape_errors_total"

	endpointLabel = "endpoint"
	statusLabel   = "status"

	statusSuccess = "success"
	statusError   = "error"
)

/**
* Metrics definition
**/
var apiRequestsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: exporterSubsystem,
		Name:      apiRequestsTotal,
		Help:      "total API requests made, partitioned by endpoint and outcome",
	},
	[]string{endpointLabel, statusLabel},
)

var apiRequestDurationMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Subsystem: exporterSubsystem,
		Name:      apiRequestDuration,
		Help:      "duration of the last API request per endpoint",
	},
	[]string{endpointLabel},
)

var scrapeErrorsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: exporterSubsystem,
		Name:      scrapeErrorsTotal,
		Help:      "total transport failures per endpoint",
	},
	[]string{endpointLabel},
)

func observeRequest(endpoint string, seconds float64, err error) {
	apiRequestDurationMetric.WithLabelValues(endpoint).Set(seconds)
	if err != nil {
		apiRequestsTotalMetric.WithLabelValues(endpoint, statusError).Inc()
		return
	}
	apiRequestsTotalMetric.WithLabelValues(endpoint, statusSuccess).Inc()
}

func countScrapeError(endpoint string) {
	scrapeErrorsTotalMetric.WithLabelValues(endpoint).Inc()
}

func init() {
	prometheus.MustRegister(
		apiRequestsTotalMetric,
		apiRequestDurationMetric,
		scrapeErrorsTotalMetric,
	)
}
