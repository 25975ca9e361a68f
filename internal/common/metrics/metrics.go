// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DocumentsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_documents_generated_total",
			Help: "Total number of documents produced by the pipeline",
		},
		[]string{"template", "mode"},
	)

	PipelineFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_pipeline_failures_total",
			Help: "Total number of pipeline invocations ending in a hard failure",
		},
		[]string{"template", "error_code"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "docgen_pipeline_duration_seconds",
			Help: "Duration of pipeline invocations in seconds",
		},
		[]string{"template"},
	)

	ConversionStrategyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_conversion_strategy_failures_total",
			Help: "Per-strategy conversion failures before fallback",
		},
		[]string{"strategy"},
	)
)
