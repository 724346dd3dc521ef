package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pagesTranscribed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pages_transcribed_total",
	Help: "Pages successfully transcribed",
})

var pageFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "page_failures_total",
	Help: "Pages skipped after a transcription failure",
})

var activePipelines = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_pipelines",
	Help: "Lesson pipelines currently running",
})

var pipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "pipeline_duration_seconds",
	Help:    "Total time of a lesson processing run",
	Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
}, []string{"status"})

var completionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "completion_latency_seconds",
	Help:    "Latency of vision completion calls",
	Buckets: []float64{.25, .5, 1, 2, 5, 10, 30, 60},
}, []string{"call"})

func PageTranscribed() { pagesTranscribed.Inc() }
func PageFailed()      { pageFailures.Inc() }

func PipelineStarted() { activePipelines.Inc() }

func PipelineFinished(status string, elapsed time.Duration) {
	activePipelines.Dec()
	pipelineDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

func ObserveCompletion(call string, elapsed time.Duration) {
	completionLatency.WithLabelValues(call).Observe(elapsed.Seconds())
}
