package redisq

// Instrument names used across the coordinator's components, registered
// lazily by name against whatever metrics.Provider the Registry carries
// (NoopProvider by default, metrics.BasicProvider in tests, or
// metrics.PrometheusProvider in production).
const (
	metricTasksSubmitted    = "redisq_tasks_submitted_total"
	metricTasksResubmitted  = "redisq_tasks_resubmitted_total"
	metricResultsCollected  = "redisq_results_collected_total"
	metricInflightTasks     = "redisq_inflight_tasks"
	metricCombineSeconds    = "redisq_combine_seconds"
	metricDuplicatesDropped = "redisq_duplicate_results_dropped_total"
)
