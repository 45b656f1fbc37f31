package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var RunningJobsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "enrich_running_jobs",
	Help: "The current number of running jobs",
})

var JobDurationSummary = promauto.NewSummary(prometheus.SummaryOpts{
	Name: "enrich_job_duration_sec",
	Help: "Job execution duration in seconds",
})

var RunningTasksGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "enrich_running_tasks",
	Help: "The current number of running tasks",
})

var FailedTasksCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "enrich_failed_tasks_total",
	Help: "The number of tasks failed by an error or a panic",
})

// BroadcastWaitHistogram observes how long a task waited for its broadcast
// to be available.
var BroadcastWaitHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "enrich_broadcast_wait_sec",
	Help:    "Time spent by tasks waiting for a broadcast variable",
	Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
})

var BroadcastElementsHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "enrich_broadcast_elements",
	Help:    "The number of elements in published broadcast variables",
	Buckets: prometheus.ExponentialBuckets(1, 10, 7),
})
