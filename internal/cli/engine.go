package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppiankov/ictrisk/internal/assess"
	"github.com/ppiankov/ictrisk/internal/classify"
	"github.com/ppiankov/ictrisk/internal/extract"
	"github.com/ppiankov/ictrisk/internal/model"
	"github.com/ppiankov/ictrisk/internal/schema"
	"github.com/ppiankov/ictrisk/internal/score"
	"github.com/ppiankov/ictrisk/internal/store"
)

// engine bundles the components every command builds from the config
type engine struct {
	registry   *schema.Registry
	extractors *extract.Registry
	qualifier  *score.Qualifier
	store      store.Store
	classifier *classify.Classifier
	logger     *slog.Logger
}

// engineOptions selects the optional parts of the engine
type engineOptions struct {
	classifier        bool // open the store and load the classifier
	discardMismatched bool // start untrained when persisted state is for another schema
}

// newEngine loads the schema and extraction rules and, when requested, the
// persisted classifier. Configuration problems are fatal here.
func newEngine(cfg *model.Config, opts engineOptions) (*engine, error) {
	logger := slog.Default()

	registry, err := loadSchema(cfg.Risk.SchemaFile)
	if err != nil {
		return nil, err
	}

	rules, err := loadRules(cfg.Risk.RulesFile)
	if err != nil {
		return nil, err
	}
	if err := rules.Validate(registry); err != nil {
		return nil, err
	}

	e := &engine{
		registry:   registry,
		extractors: extract.NewRegistry(rules),
		qualifier:  score.NewQualifier(registry),
		logger:     logger,
	}

	if !opts.classifier {
		return e, nil
	}

	st, err := store.Open(cfg.Model.Store, cfg.Model.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open model store: %w", err)
	}

	c, err := classify.New(e.qualifier, st, classify.Options{
		Name:                cfg.Model.Name,
		MinSamples:          cfg.Model.MinSamples,
		MaxSyntheticSamples: cfg.Model.MaxSyntheticSamples,
		Seed:                cfg.Model.Seed,
		DiscardMismatched:   opts.discardMismatched,
		Logger:              logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("load classifier: %w", err)
	}

	e.store = st
	e.classifier = c
	return e, nil
}

// assessor returns the assessment facade; the classifier is consulted only
// when it is enabled and trained
func (e *engine) assessor(useModel bool) *assess.Assessor {
	var c *classify.Classifier
	if useModel && e.classifier != nil && e.classifier.IsTrained() {
		c = e.classifier
	}
	return assess.NewAssessor(e.extractors, e.qualifier, c, e.logger)
}

// Close releases the model store
func (e *engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

func loadSchema(path string) (*schema.Registry, error) {
	if path == "" {
		return schema.Default()
	}
	return schema.Load(path)
}

func loadRules(path string) (extract.Rules, error) {
	if path == "" {
		return extract.DefaultRules()
	}
	return extract.LoadRules(path)
}

// closeEngine closes e and joins any close error into err
func closeEngine(e *engine, err *error) {
	if closeErr := e.Close(); closeErr != nil {
		*err = errors.Join(*err, fmt.Errorf("close model store: %w", closeErr))
	}
}
