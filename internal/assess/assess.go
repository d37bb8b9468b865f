// Package assess orchestrates one vendor assessment: extractors run over the
// contract and service inputs, their factors are merged, manual questionnaire
// answers are layered on top, and the result is qualified (and, when a
// trained model is available, classified).
package assess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/ictrisk/internal/classify"
	"github.com/ppiankov/ictrisk/internal/extract"
	"github.com/ppiankov/ictrisk/internal/merge"
	"github.com/ppiankov/ictrisk/internal/metrics"
	"github.com/ppiankov/ictrisk/internal/model"
	"github.com/ppiankov/ictrisk/internal/schema"
	"github.com/ppiankov/ictrisk/internal/score"
)

// Request is the input of one assessment
type Request struct {
	ID          string                  `json:"id,omitempty"`
	Vendor      string                  `json:"vendor,omitempty"`
	ServiceName string                  `json:"service_name,omitempty"`
	Manual      model.RiskFactorMap     `json:"manual_responses,omitempty"`
	Contract    *model.ContractAnalysis `json:"contract_analysis,omitempty"`
	Service     model.ServiceDetails    `json:"service_details,omitempty"`
}

// LoadRequest reads a JSON request file
func LoadRequest(path string) (Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Request{}, fmt.Errorf("read request: %w", err)
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("parse request %s: %w", path, err)
	}
	return req, nil
}

// Assessment is the packaged verdict of one request
type Assessment struct {
	ID                  string              `json:"id"`
	Vendor              string              `json:"vendor,omitempty"`
	ServiceName         string              `json:"service_name,omitempty"`
	AssessedAt          time.Time           `json:"assessed_at"`
	SchemaVersion       string              `json:"schema_version"`
	Score               model.ScoreResult   `json:"score"`
	Prediction          *model.Prediction   `json:"prediction,omitempty"`
	PredictionError     string              `json:"prediction_error,omitempty"`
	AutoDetectedFactors []string            `json:"auto_detected_factors"`
	CoverageGaps        []string            `json:"coverage_gaps,omitempty"`
	Unrecognized        []string            `json:"unrecognized,omitempty"`
	Sources             []extract.Result    `json:"sources"`
	EnrichedFactors     model.RiskFactorMap `json:"enriched_factors"`
}

// Assessor runs assessments. It is safe for concurrent use.
type Assessor struct {
	registry   *schema.Registry
	extractors *extract.Registry
	qualifier  *score.Qualifier
	classifier *classify.Classifier
	logger     *slog.Logger
}

// NewAssessor creates an assessor. A nil classifier disables the statistical path.
func NewAssessor(extractors *extract.Registry, qualifier *score.Qualifier, classifier *classify.Classifier, logger *slog.Logger) *Assessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assessor{
		registry:   qualifier.Registry(),
		extractors: extractors,
		qualifier:  qualifier,
		classifier: classifier,
		logger:     logger,
	}
}

// Assess produces the assessment for req. The only error is cancellation of ctx;
// sparse or malformed inputs degrade to fewer factors.
func (a *Assessor) Assess(ctx context.Context, req Request) (*Assessment, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger := a.logger.With("assessment", id)

	// 1. Extract factors from every source that has data
	in := extract.Input{Contract: req.Contract, Service: req.Service}
	extractors := a.extractors.Extractors()
	results := make([]*extract.Result, len(extractors))

	g, gctx := errgroup.WithContext(ctx)
	for i, e := range extractors {
		if !e.CanHandle(in) {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := e.Extract(in)
			results[i] = &r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract factors: %w", err)
	}

	assessment := &Assessment{
		ID:            id,
		Vendor:        req.Vendor,
		ServiceName:   req.ServiceName,
		AssessedAt:    time.Now().UTC(),
		SchemaVersion: a.registry.Fingerprint(),
		Sources:       []extract.Result{},
	}

	// 2. Merge automated sources (OR)
	var extracted []model.RiskFactorMap
	for _, r := range results {
		if r == nil {
			continue
		}
		assessment.Sources = append(assessment.Sources, *r)
		assessment.CoverageGaps = append(assessment.CoverageGaps, r.Gaps...)
		extracted = append(extracted, r.Factors)
		if r.Status == extract.StatusDegraded {
			logger.Warn("extractor degraded", "source", r.Source, "issues", len(r.Issues))
		}
	}
	merged := merge.MergeAll(extracted...)
	assessment.AutoDetectedFactors = merged.TrueKeys()
	if assessment.AutoDetectedFactors == nil {
		assessment.AutoDetectedFactors = []string{}
	}

	// 3. Layer manual answers on top; both sides use canonical keys so a
	// label-keyed answer still overrides the extracted value
	manual, unknown := a.registry.Normalize(req.Manual)
	auto, _ := a.registry.Normalize(merged)
	assessment.Unrecognized = unknown
	assessment.EnrichedFactors = merge.ApplyManual(manual, auto)

	// 4. Qualify
	assessment.Score = a.qualifier.Qualify(assessment.EnrichedFactors)
	metrics.RecordAssessment(string(assessment.Score.Classification), string(assessment.Score.Method),
		assessment.Score.RiskScore, assessment.Score.InsufficientData, assessment.Score.OverridesFired)

	// 5. Classify when a model is available
	if a.classifier != nil {
		prediction, err := a.classifier.Predict(assessment.EnrichedFactors)
		switch {
		case err == nil:
			assessment.Prediction = &prediction
		case errors.Is(err, model.ErrModelNotTrained):
			logger.Debug("statistical classifier not trained; rule-based verdict only")
			assessment.PredictionError = err.Error()
		default:
			logger.Warn("prediction failed", "error", err)
			assessment.PredictionError = err.Error()
		}
	}

	logger.Debug("assessment complete",
		"tier", assessment.Score.Classification,
		"score", assessment.Score.RiskScore,
		"dora_critical", assessment.Score.DoraCritical)

	return assessment, nil
}
