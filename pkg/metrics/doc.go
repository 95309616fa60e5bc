/*
Package metrics provides Prometheus metrics and health endpoints for a dicc
node.

All metrics are registered on the default registry at package init and
served by NewMux on the address given with --metrics-addr:

	/metrics   Prometheus exposition
	/health    overall health with per-component detail
	/ready     ready once coordinator, platforms and workers report healthy
	/live      process liveness

# Metrics

	dicc_platform_detections_total{result}     valid | invalid
	dicc_downloads_total{source,outcome}       cache hit/miss/stale, network ok/error/mismatch
	dicc_download_duration_seconds             network fetch latency
	dicc_assignments_total{outcome}            succeeded | failed | skipped
	dicc_assignment_duration_seconds           binary wall-clock time
	dicc_polls_total{outcome}                  work | idle | error
	dicc_results_submitted_total
	dicc_workers_active
	dicc_cache_files{dir}, dicc_cache_bytes{dir}

Timer measures an operation and feeds a histogram:

	timer := metrics.NewTimer()
	data, err := fetch()
	timer.ObserveDuration(metrics.DownloadDuration)

Components report health with UpdateComponent; readiness requires every
critical component to be healthy.
*/
package metrics
