package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Platform metrics
	PlatformDetections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dicc_platform_detections_total",
			Help: "Platform detection outcomes by result (valid, invalid)",
		},
		[]string{"result"},
	)

	// Download metrics
	DownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dicc_downloads_total",
			Help: "Artifact materializations by source (cache, network) and outcome",
		},
		[]string{"source", "outcome"},
	)

	DownloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dicc_download_duration_seconds",
			Help:    "Time taken to fetch an artifact from the network in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Assignment metrics
	AssignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dicc_assignments_total",
			Help: "Assignments processed by outcome (succeeded, failed, skipped)",
		},
		[]string{"outcome"},
	)

	AssignmentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dicc_assignment_duration_seconds",
			Help:    "Wall-clock execution time of assignment binaries in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600},
		},
	)

	// Worker loop metrics
	PollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dicc_polls_total",
			Help: "Coordinator polls by outcome (work, idle, error)",
		},
		[]string{"outcome"},
	)

	ResultsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dicc_results_submitted_total",
			Help: "Total number of results acknowledged by the coordinator",
		},
	)

	WorkersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dicc_workers_active",
			Help: "Number of worker loops currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(PlatformDetections)
	prometheus.MustRegister(DownloadsTotal)
	prometheus.MustRegister(DownloadDuration)
	prometheus.MustRegister(AssignmentsTotal)
	prometheus.MustRegister(AssignmentDuration)
	prometheus.MustRegister(PollsTotal)
	prometheus.MustRegister(ResultsSubmitted)
	prometheus.MustRegister(WorkersActive)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewMux returns a mux serving /metrics, /health, /ready and /live.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", HealthHandler())
	mux.HandleFunc("/ready", ReadyHandler())
	mux.HandleFunc("/live", LivenessHandler())
	return mux
}
