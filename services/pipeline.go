package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"loan-eda/models"
	"loan-eda/utils"
)

// Pipeline stage names, used in logs and metrics.
const (
	StageLoad       = "load"
	StageClean      = "clean"
	StageCategorize = "categorize"
	StageOutliers   = "outliers"
	StageFeatures   = "features"
)

// PipelineOptions tunes the pipeline. Zero values select the defaults.
type PipelineOptions struct {
	// MissingThreshold of 0 selects DefaultMissingThreshold; the config layer
	// rejects an explicit 0.
	MissingThreshold float64
	OutlierWorkers   int

	// Now is the reference clock for credit age and the build timestamp.
	Now func() time.Time

	// Observe, if set, is called after each stage.
	Observe func(stage string, elapsed time.Duration, rows int)
}

// Pipeline runs Loader, Cleaner, Categorizer, Outlier Handler and Feature
// Deriver in sequence and assembles the Analysis-Ready Table.
type Pipeline struct {
	logger      *utils.Logger
	loader      *Loader
	cleaner     *Cleaner
	categorizer *Categorizer
	outliers    *OutlierHandler
	features    *FeatureDeriver
	now         func() time.Time
	observe     func(stage string, elapsed time.Duration, rows int)
}

// NewPipeline wires the stages.
func NewPipeline(logger *utils.Logger, opts PipelineOptions) *Pipeline {
	threshold := opts.MissingThreshold
	if threshold == 0 {
		threshold = DefaultMissingThreshold
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	observe := opts.Observe
	if observe == nil {
		observe = func(string, time.Duration, int) {}
	}
	return &Pipeline{
		logger:      logger,
		loader:      NewLoader(logger),
		cleaner:     NewCleaner(logger, threshold),
		categorizer: NewCategorizer(logger),
		outliers:    NewOutlierHandler(logger, opts.OutlierWorkers),
		features:    NewFeatureDeriver(logger, now),
		now:         now,
		observe:     observe,
	}
}

// Run loads path and builds the table. Load failures are *LoadError.
func (p *Pipeline) Run(ctx context.Context, path string) (*models.Table, error) {
	start := time.Now()
	raw, err := p.loader.Load(path)
	if err != nil {
		return nil, err
	}
	p.observe(StageLoad, time.Since(start), len(raw.Records))
	return p.Build(ctx, raw)
}

// Build runs every stage after loading.
func (p *Pipeline) Build(ctx context.Context, raw *RawTable) (*models.Table, error) {
	builtAt := p.now().UTC()

	start := time.Now()
	cleaned := p.cleaner.Clean(raw)
	p.observe(StageClean, time.Since(start), len(cleaned.Records))
	if len(cleaned.Records) != len(raw.Records) {
		return nil, fmt.Errorf("pipeline: cleaner changed row count %d -> %d", len(raw.Records), len(cleaned.Records))
	}

	start = time.Now()
	fallbacks := p.categorizer.Apply(cleaned.Records)
	p.observe(StageCategorize, time.Since(start), len(cleaned.Records))

	start = time.Now()
	stats, err := p.outliers.Apply(ctx, cleaned.Schema, cleaned.Records)
	if err != nil {
		return nil, fmt.Errorf("pipeline: outliers: %w", err)
	}
	p.observe(StageOutliers, time.Since(start), len(cleaned.Records))

	start = time.Now()
	skipped := p.features.Apply(cleaned.Records)
	p.observe(StageFeatures, time.Since(start), len(cleaned.Records))

	t := models.NewTable(models.TableParts{
		RunID:     uuid.NewString(),
		Source:    raw.Path,
		BuiltAt:   builtAt,
		Schema:    cleaned.Schema,
		Records:   cleaned.Records,
		Outliers:  stats,
		Drops:     cleaned.Drops,
		Skipped:   skipped,
		Fallbacks: fallbacks,
	})

	p.logger.Info("[pipeline] Analysis-ready table %s: %d rows, %d output columns",
		t.RunID(), t.Len(), len(t.Header()))
	return t, nil
}
