package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnalysesTotal counts completed analyses by resulting risk level.
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veridoc_analyses_total",
		Help: "Total completed analyses by risk level",
	}, []string{"risk_level"})

	// AnalysisErrors counts failed analyses by error type.
	AnalysisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veridoc_analysis_errors_total",
		Help: "Total failed analyses by error type",
	}, []string{"error_type"})

	// AnalysisDuration tracks end-to-end analysis latency.
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "veridoc_analysis_duration_seconds",
		Help:    "End-to-end analysis duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})

	// DetectorTimeouts counts sub-detector time-budget overruns by detector.
	DetectorTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veridoc_detector_timeouts_total",
		Help: "Total sub-detector timeouts by detector",
	}, []string{"detector"})

	// OverallScore observes the distribution of overall risk scores.
	OverallScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "veridoc_overall_score",
		Help:    "Distribution of overall risk scores",
		Buckets: []float64{10, 26, 40, 51, 65, 76, 90, 100},
	})
)
