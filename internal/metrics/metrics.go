// Package metrics holds the Prometheus collectors for assessments and the
// classifier. The CLI is short-lived, so batch runs export the default
// registry through a node_exporter textfile instead of serving /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ictrisk"

var (
	// assessments counts qualification verdicts.
	// Labels: tier, method (rules, model)
	assessments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assessment",
		Name:      "total",
		Help:      "Total assessments by tier and method",
	}, []string{"tier", "method"})

	// insufficientData counts verdicts where no recognized factor was supplied
	insufficientData = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assessment",
		Name:      "insufficient_data_total",
		Help:      "Total assessments with no recognized factor",
	})

	// overrides counts hard-critical rules that fired.
	// Labels: rule
	overrides = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assessment",
		Name:      "overrides_fired_total",
		Help:      "Total hard-critical override matches by rule",
	}, []string{"rule"})

	// riskScore tracks the distribution of rule-based scores
	riskScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "assessment",
		Name:      "risk_score",
		Help:      "Distribution of rule-based risk scores",
		Buckets:   []float64{10, 25, 40, 50, 60, 75, 90, 100},
	})

	// trainRuns counts training attempts.
	// Labels: status (success, failure)
	trainRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "classifier",
		Name:      "train_total",
		Help:      "Total classifier training runs by status",
	}, []string{"status"})

	// trainAccuracy is the holdout accuracy of the last successful training run
	trainAccuracy = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "classifier",
		Name:      "accuracy",
		Help:      "Holdout accuracy of the active model",
	})

	// predictions counts classifier predictions.
	// Labels: outcome (ok, not_trained)
	predictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "classifier",
		Name:      "predict_total",
		Help:      "Total classifier predictions by outcome",
	}, []string{"outcome"})
)

// RecordAssessment records one qualification verdict
func RecordAssessment(tier, method string, score float64, insufficient bool, fired []string) {
	assessments.WithLabelValues(tier, method).Inc()
	if insufficient {
		insufficientData.Inc()
		return
	}
	riskScore.Observe(score)
	for _, rule := range fired {
		overrides.WithLabelValues(rule).Inc()
	}
}

// RecordTraining records one training run
func RecordTraining(status string, accuracy float64) {
	trainRuns.WithLabelValues(status).Inc()
	if status == "success" {
		trainAccuracy.Set(accuracy)
	}
}

// RecordPrediction records one prediction attempt
func RecordPrediction(outcome string) {
	predictions.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text format, for pickup by node_exporter's textfile collector
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
