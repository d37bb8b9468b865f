// Package classify implements the trainable statistical risk classifier.
//
// The model is a Bernoulli naive Bayes over the registered factor vector.
// Trained state is immutable once published: Train builds a new state,
// persists it and only then swaps it in, so concurrent predictions always see
// either the old or the new model, never a partial one.
package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/ictrisk/internal/metrics"
	"github.com/ppiankov/ictrisk/internal/model"
	"github.com/ppiankov/ictrisk/internal/schema"
	"github.com/ppiankov/ictrisk/internal/score"
	"github.com/ppiankov/ictrisk/internal/store"
)

const (
	stateFormat = "ictrisk.nb.v1"

	defaultName         = "risk-classifier"
	defaultMinSamples   = 20
	defaultMaxSynthetic = 10000
	defaultAlpha        = 1.0

	// every holdoutEvery-th sample is held out to measure accuracy
	holdoutEvery = 5
)

var (
	// ErrInvalidSample marks a training sample that cannot be used
	ErrInvalidSample = errors.New("invalid training sample")

	// ErrCorruptState marks persisted state that cannot be decoded
	ErrCorruptState = errors.New("corrupt model state")
)

// TrainStatus is the outcome of a training run
type TrainStatus string

const (
	TrainSuccess TrainStatus = "success"
	TrainFailure TrainStatus = "failure"
)

// TrainResult reports a training run. Training never returns an error
// directly; failures are reported through Status, Message and Err.
type TrainResult struct {
	Status      TrainStatus `json:"status"`
	Accuracy    float64     `json:"accuracy"`
	Message     string      `json:"message"`
	SampleCount int         `json:"sample_count"`
	ModelID     string      `json:"model_id,omitempty"`
	Err         error       `json:"-"`
}

// Options configures a Classifier
type Options struct {
	Name                string       // Key of the persisted state
	MinSamples          int          // Training refuses smaller sets
	MaxSyntheticSamples int          // Upper bound for generation requests
	Seed                uint64       // Synthetic data seed; 0 means time-seeded
	Alpha               float64      // Laplace smoothing
	DiscardMismatched   bool         // Start untrained instead of failing on schema mismatch
	Logger              *slog.Logger // Defaults to slog.Default()
}

// Info summarizes the active model
type Info struct {
	Trained       bool               `json:"trained"`
	ID            string             `json:"id,omitempty"`
	SchemaVersion string             `json:"schema_version,omitempty"`
	SampleCount   int                `json:"sample_count,omitempty"`
	ClassCounts   map[model.Tier]int `json:"class_counts,omitempty"`
	Accuracy      float64            `json:"accuracy,omitempty"`
	TrainedAt     time.Time          `json:"trained_at,omitempty"`
}

// state is the persisted, schema-versioned model
type state struct {
	Format        string             `json:"format"`
	ID            string             `json:"id"`
	SchemaVersion string             `json:"schema_version"`
	Features      []string           `json:"features"`
	Classes       []model.Tier       `json:"classes"`
	Priors        []float64          `json:"priors"`
	FeatureProbs  [][]float64        `json:"feature_probs"`
	Alpha         float64            `json:"alpha"`
	SampleCount   int                `json:"sample_count"`
	ClassCounts   map[model.Tier]int `json:"class_counts"`
	Accuracy      float64            `json:"accuracy"`
	TrainedAt     time.Time          `json:"trained_at"`
}

func (s *state) nb() bernoulliNB {
	return bernoulliNB{priors: s.Priors, featureProbs: s.FeatureProbs}
}

// Classifier predicts risk tiers from factor vectors once trained
type Classifier struct {
	registry  *schema.Registry
	qualifier *score.Qualifier
	store     store.Store
	opts      Options
	logger    *slog.Logger

	features    []model.FactorRef
	featureKeys []string

	current atomic.Pointer[state]
	trainMu sync.Mutex

	// staleIgnored hides persisted state trained against another schema
	// until a new model is trained
	staleIgnored atomic.Bool

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a classifier and loads any persisted state for opts.Name.
// Persisted state trained against a different schema yields a
// *model.SchemaMismatchError unless opts.DiscardMismatched is set.
func New(qualifier *score.Qualifier, st store.Store, opts Options) (*Classifier, error) {
	if opts.Name == "" {
		opts.Name = defaultName
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = defaultMinSamples
	}
	if opts.MaxSyntheticSamples <= 0 {
		opts.MaxSyntheticSamples = defaultMaxSynthetic
	}
	if opts.Alpha <= 0 {
		opts.Alpha = defaultAlpha
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if st == nil {
		st = store.NewMemoryStore()
	}

	registry := qualifier.Registry()
	c := &Classifier{
		registry:  registry,
		qualifier: qualifier,
		store:     st,
		opts:      opts,
		logger:    opts.Logger.With("model", opts.Name),
		features:  registry.Features(),
		rng:       newRandSource(opts.Seed),
	}
	c.featureKeys = make([]string, len(c.features))
	for i, ref := range c.features {
		c.featureKeys[i] = ref.String()
	}

	if _, err := c.load(); err != nil {
		var mismatch *model.SchemaMismatchError
		if opts.DiscardMismatched && errors.As(err, &mismatch) {
			c.logger.Warn("discarding persisted model trained against another schema",
				"persisted", mismatch.Persisted, "current", mismatch.Current)
			c.staleIgnored.Store(true)
			return c, nil
		}
		return nil, err
	}

	return c, nil
}

// IsTrained reports whether a trained model is available, in memory or in
// the store
func (c *Classifier) IsTrained() bool {
	if c.current.Load() != nil {
		return true
	}
	s, err := c.load()
	return err == nil && s != nil
}

// Info describes the active model
func (c *Classifier) Info() Info {
	s := c.current.Load()
	if s == nil {
		return Info{}
	}
	counts := make(map[model.Tier]int, len(s.ClassCounts))
	for k, v := range s.ClassCounts {
		counts[k] = v
	}
	return Info{
		Trained:       true,
		ID:            s.ID,
		SchemaVersion: s.SchemaVersion,
		SampleCount:   s.SampleCount,
		ClassCounts:   counts,
		Accuracy:      s.Accuracy,
		TrainedAt:     s.TrainedAt,
	}
}

// Train fits a new model on samples. On success the new state is persisted
// and then published; on failure the previous state stays active.
func (c *Classifier) Train(samples []model.SyntheticSample) TrainResult {
	c.trainMu.Lock()
	defer c.trainMu.Unlock()

	result := c.train(samples)
	metrics.RecordTraining(string(result.Status), result.Accuracy)

	if result.Status == TrainSuccess {
		c.logger.Info("model trained", "id", result.ModelID, "samples", result.SampleCount, "accuracy", result.Accuracy)
	} else {
		c.logger.Warn("training failed", "samples", result.SampleCount, "reason", result.Message)
	}
	return result
}

func (c *Classifier) train(samples []model.SyntheticSample) TrainResult {
	fail := func(err error) TrainResult {
		return TrainResult{
			Status:      TrainFailure,
			Message:     err.Error(),
			SampleCount: len(samples),
			Err:         err,
		}
	}

	if len(samples) < c.opts.MinSamples {
		return fail(fmt.Errorf("%w: %d samples, need at least %d", model.ErrInsufficientData, len(samples), c.opts.MinSamples))
	}

	tiers := c.registry.Tiers()
	present := make(map[model.Tier]int)
	for i, s := range samples {
		if !slices.Contains(tiers, s.Label) {
			return fail(fmt.Errorf("%w: sample %d has label %q outside the configured tiers", ErrInvalidSample, i, s.Label))
		}
		present[s.Label]++
	}
	if len(present) < 2 {
		return fail(fmt.Errorf("%w: training data covers only %d distinct label", model.ErrInsufficientData, len(present)))
	}

	// Classes in ascending tier order, limited to labels actually seen
	var classes []model.Tier
	classIdx := make(map[model.Tier]int)
	for _, t := range tiers {
		if present[t] > 0 {
			classIdx[t] = len(classes)
			classes = append(classes, t)
		}
	}

	x := make([][]bool, len(samples))
	y := make([]int, len(samples))
	for i, s := range samples {
		x[i] = c.vectorize(s.Factors)
		y[i] = classIdx[s.Label]
	}

	accuracy := c.holdoutAccuracy(x, y, len(classes))
	nb := fitBernoulliNB(x, y, len(classes), c.opts.Alpha)

	next := &state{
		Format:        stateFormat,
		ID:            uuid.NewString(),
		SchemaVersion: c.registry.Fingerprint(),
		Features:      append([]string(nil), c.featureKeys...),
		Classes:       classes,
		Priors:        nb.priors,
		FeatureProbs:  nb.featureProbs,
		Alpha:         c.opts.Alpha,
		SampleCount:   len(samples),
		ClassCounts:   present,
		Accuracy:      accuracy,
		TrainedAt:     time.Now().UTC(),
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fail(fmt.Errorf("marshal model state: %w", err))
	}
	if err := c.store.Set(store.Key(c.opts.Name), data); err != nil {
		return fail(fmt.Errorf("persist model state: %w", err))
	}
	c.current.Store(next)
	c.staleIgnored.Store(false)

	return TrainResult{
		Status:      TrainSuccess,
		Accuracy:    accuracy,
		Message:     fmt.Sprintf("trained on %d samples across %d classes", len(samples), len(classes)),
		SampleCount: len(samples),
		ModelID:     next.ID,
	}
}

// holdoutAccuracy fits on all but every holdoutEvery-th sample and scores the
// rest. Small sets, or splits that lose a class, fall back to training accuracy.
func (c *Classifier) holdoutAccuracy(x [][]bool, y []int, k int) float64 {
	var trainX, testX [][]bool
	var trainY, testY []int
	seen := make(map[int]bool)
	for i := range x {
		if i%holdoutEvery == holdoutEvery-1 {
			testX = append(testX, x[i])
			testY = append(testY, y[i])
			continue
		}
		trainX = append(trainX, x[i])
		trainY = append(trainY, y[i])
		seen[y[i]] = true
	}

	if len(testX) == 0 || len(seen) < k {
		trainX, trainY, testX, testY = x, y, x, y
	}

	nb := fitBernoulliNB(trainX, trainY, k, c.opts.Alpha)
	correct := 0
	for i, row := range testX {
		if nb.predict(row) == testY[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(testX))
}

// Predict classifies a factor map with the active model
func (c *Classifier) Predict(factors model.RiskFactorMap) (model.Prediction, error) {
	s := c.current.Load()
	if s == nil {
		loaded, err := c.load()
		if err != nil {
			return model.Prediction{}, err
		}
		s = loaded
	}
	if s == nil {
		metrics.RecordPrediction("not_trained")
		return model.Prediction{}, model.ErrModelNotTrained
	}

	normalized, unknown := c.registry.Normalize(factors)
	probs := s.nb().predictProba(c.vectorize(normalized))
	best := argmax(probs)

	probabilities := make(map[model.Tier]float64, len(c.registry.Tiers()))
	for _, t := range c.registry.Tiers() {
		probabilities[t] = 0
	}
	var riskScore float64
	for i, t := range s.Classes {
		probabilities[t] = probs[i]
		riskScore += probs[i] * c.registry.Midpoint(t)
	}

	tier := s.Classes[best]
	fired := c.qualifier.FiredOverrides(normalized)

	result := model.ScoreResult{
		RiskScore:        math.Max(0, math.Min(100, riskScore)),
		Classification:   tier,
		DoraCritical:     c.registry.IsCriticalTier(tier) || len(fired) > 0,
		Confidence:       probs[best],
		ComponentScores:  c.qualifier.ComponentScores(normalized),
		InsufficientData: len(normalized) == 0,
		OverridesFired:   fired,
		Unrecognized:     unknown,
		Method:           model.MethodModel,
	}
	if result.InsufficientData {
		result.Signals = append(result.Signals, model.Signal{
			Type:        model.SignalInsufficientData,
			Severity:    model.SeverityWarning,
			Description: "No recognized risk category in the input; prediction reflects class priors only",
		})
	}
	for _, name := range fired {
		result.Signals = append(result.Signals, model.Signal{
			Type:        model.SignalOverride,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("Hard-critical rule %q matched", name),
			Data:        map[string]interface{}{"rule": name},
		})
	}

	metrics.RecordPrediction("ok")
	return model.Prediction{
		ScoreResult:   result,
		Probabilities: probabilities,
		ModelID:       s.ID,
	}, nil
}

// load reads persisted state into memory. It returns nil without error when
// nothing is stored.
func (c *Classifier) load() (*state, error) {
	if c.staleIgnored.Load() {
		return nil, nil
	}
	data, found, err := c.store.Get(store.Key(c.opts.Name))
	if err != nil {
		return nil, fmt.Errorf("read model state: %w", err)
	}
	if !found {
		return nil, nil
	}

	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if s.Format != stateFormat {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrCorruptState, s.Format)
	}
	if s.SchemaVersion != c.registry.Fingerprint() || !slices.Equal(s.Features, c.featureKeys) {
		return nil, &model.SchemaMismatchError{Persisted: s.SchemaVersion, Current: c.registry.Fingerprint()}
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	c.current.CompareAndSwap(nil, &s)
	return c.current.Load(), nil
}

func (s *state) validate() error {
	if len(s.Classes) == 0 || len(s.Priors) != len(s.Classes) || len(s.FeatureProbs) != len(s.Classes) {
		return fmt.Errorf("%w: class table is inconsistent", ErrCorruptState)
	}
	for _, probs := range s.FeatureProbs {
		if len(probs) != len(s.Features) {
			return fmt.Errorf("%w: feature table is inconsistent", ErrCorruptState)
		}
		for _, p := range probs {
			if p <= 0 || p >= 1 || math.IsNaN(p) {
				return fmt.Errorf("%w: feature probability %v out of range", ErrCorruptState, p)
			}
		}
	}
	return nil
}

// vectorize maps a factor map onto the registered feature order. Keys are
// resolved through the schema, so labels and names are both accepted.
func (c *Classifier) vectorize(factors model.RiskFactorMap) []bool {
	normalized, _ := c.registry.Normalize(factors)
	row := make([]bool, len(c.features))
	for i, ref := range c.features {
		row[i], _ = normalized.Get(ref.Category, ref.Factor)
	}
	return row
}
