package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	IngestedFiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docindex", Name: "ingested_files_total", Help: "Uploaded files by ingestion outcome (created, updated, failed)."},
		[]string{"outcome"},
	)
	Extractions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docindex", Name: "extractions_total", Help: "Content extractions by format and status."},
		[]string{"format", "status"},
	)
	MaintenanceDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docindex", Name: "maintenance_deleted_total", Help: "Documents removed by maintenance operation."},
		[]string{"operation"},
	)
	MaintenanceSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docindex", Name: "maintenance_skipped_total", Help: "Documents whose removal failed and was skipped, by operation."},
		[]string{"operation"},
	)
	PurgeBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "docindex", Name: "purge_batch_documents", Help: "Documents fetched per age-purge batch.", Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500}},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docindex", Name: "rate_limit_allowed_total", Help: "Requests admitted by the rate limiter, by backend."},
		[]string{"backend"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docindex", Name: "rate_limit_rejected_total", Help: "Requests rejected by the rate limiter, by backend."},
		[]string{"backend"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docindex", Name: "http_requests_total", Help: "HTTP requests by route and status code."},
		[]string{"route", "code"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(IngestedFiles)
	reg.MustRegister(Extractions)
	reg.MustRegister(MaintenanceDeleted)
	reg.MustRegister(MaintenanceSkipped)
	reg.MustRegister(PurgeBatchSize)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(HTTPRequests)
}
