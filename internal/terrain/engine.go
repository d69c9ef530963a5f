// Package terrain samples elevations inside a parcel and derives slope
// statistics and an elevation color classification.
package terrain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/elevation"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/geospatial"
)

// DefaultMaxResolution bounds the lattice size accepted by Analyze.
const DefaultMaxResolution = 100

var (
	ErrPolygonRequired      = errors.New("a polygon with at least 3 vertices is required")
	ErrElevationQueryFailed = errors.New("elevation query failed")
	ErrInvalidResolution    = errors.New("invalid grid resolution")
)

// MetricsRecorder receives analysis and batch observations.
type MetricsRecorder interface {
	RecordAnalysis(outcome string, duration time.Duration, samples int)
	RecordElevationBatch(outcome string, size int)
}

// ClassifiedSample is one elevation sample with its ramp color.
type ClassifiedSample struct {
	Location  geospatial.Vertex `json:"location"`
	Elevation float64           `json:"elevation"`
	Color     string            `json:"color"`
}

// Result is the outcome of a single analysis.
type Result struct {
	MinElevation float64            `json:"min_elevation"`
	MaxElevation float64            `json:"max_elevation"`
	Slope        SlopeStats         `json:"slope"`
	AvgSlope     float64            `json:"avg_slope"`
	Samples      []ClassifiedSample `json:"samples"`
	Grid         Grid               `json:"grid"`
	Batches      int                `json:"batches"`
}

// Engine runs terrain analyses. It keeps no state between calls.
type Engine struct {
	provider          elevation.Provider
	logger            *zap.Logger
	metrics           MetricsRecorder
	defaultResolution int
	maxResolution     int
}

// Option configures an Engine.
type Option func(*Engine)

func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithResolution overrides the default and maximum lattice sizes.
func WithResolution(defaultN, maxN int) Option {
	return func(e *Engine) {
		if defaultN > 0 {
			e.defaultResolution = defaultN
		}
		if maxN > 0 {
			e.maxResolution = maxN
		}
	}
}

// NewEngine creates an engine backed by provider.
func NewEngine(provider elevation.Provider, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		provider:          provider,
		logger:            logger,
		defaultResolution: DefaultResolution,
		maxResolution:     DefaultMaxResolution,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze samples polygon on a resolution×resolution lattice (0 selects the
// default). The polygon is only read. Elevation batches run in lattice order;
// the first failing batch aborts the call with ErrElevationQueryFailed and no
// partial result. Cancelling ctx stops between or during batches.
func (e *Engine) Analyze(ctx context.Context, polygon geospatial.Polygon, resolution int) (*Result, error) {
	start := time.Now()

	res, err := e.analyze(ctx, polygon.Clone(), resolution)

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrPolygonRequired), errors.Is(err, ErrInvalidResolution):
		outcome = "rejected"
	case ctx.Err() != nil:
		outcome = "cancelled"
	default:
		outcome = "failed"
	}

	samples := 0
	if res != nil {
		samples = len(res.Samples)
	}
	if e.metrics != nil {
		e.metrics.RecordAnalysis(outcome, time.Since(start), samples)
	}

	if err != nil {
		e.logger.Warn("terrain analysis did not complete",
			zap.String("outcome", outcome),
			zap.Int("vertices", len(polygon)),
			zap.Error(err))
		return nil, err
	}

	e.logger.Info("terrain analysis finished",
		zap.Int("resolution", res.Grid.Resolution),
		zap.Int("samples", samples),
		zap.Int("batches", res.Batches),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

func (e *Engine) analyze(ctx context.Context, polygon geospatial.Polygon, resolution int) (*Result, error) {
	if !polygon.IsClosable() {
		return nil, ErrPolygonRequired
	}

	if resolution == 0 {
		resolution = e.defaultResolution
	}
	if resolution < 0 || resolution > e.maxResolution {
		return nil, fmt.Errorf("%w: %d (allowed 1..%d)", ErrInvalidResolution, resolution, e.maxResolution)
	}

	grid := BuildGrid(polygon, resolution)

	samples, batches, err := e.sample(ctx, grid.Points)
	if err != nil {
		return nil, err
	}

	min, max := ElevationRange(samples)
	stats := SummarizeSlopes(Slopes(samples))

	classified := make([]ClassifiedSample, len(samples))
	for i, s := range samples {
		classified[i] = ClassifiedSample{
			Location:  s.Location,
			Elevation: s.Elevation,
			Color:     Classify(s.Elevation, min, max).Hex(),
		}
	}

	return &Result{
		MinElevation: min,
		MaxElevation: max,
		Slope:        stats,
		AvgSlope:     stats.Average,
		Samples:      classified,
		Grid:         grid,
		Batches:      batches,
	}, nil
}

// sample queries the provider in consecutive chunks no larger than its
// batch limit.
func (e *Engine) sample(ctx context.Context, points []geospatial.Vertex) ([]elevation.Sample, int, error) {
	limit := e.provider.BatchLimit()
	if limit <= 0 {
		limit = elevation.DefaultBatchLimit
	}

	total := (len(points) + limit - 1) / limit
	samples := make([]elevation.Sample, 0, len(points))

	for b := 0; b < total; b++ {
		if err := ctx.Err(); err != nil {
			return nil, b, fmt.Errorf("analysis cancelled: %w", err)
		}

		lo := b * limit
		hi := min(lo+limit, len(points))

		batch, err := e.provider.Lookup(ctx, points[lo:hi])
		if err == nil && len(batch) != hi-lo {
			err = fmt.Errorf("provider returned %d samples for %d locations", len(batch), hi-lo)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, b, fmt.Errorf("analysis cancelled: %w", ctx.Err())
			}
			e.recordBatch("failed", hi-lo)
			e.logger.Error("elevation batch failed",
				zap.Int("batch", b+1),
				zap.Int("batches", total),
				zap.Int("size", hi-lo),
				zap.Error(err))
			return nil, b, fmt.Errorf("%w: batch %d of %d: %w", ErrElevationQueryFailed, b+1, total, err)
		}

		e.recordBatch("ok", hi-lo)
		samples = append(samples, batch...)
	}

	return samples, total, nil
}

func (e *Engine) recordBatch(outcome string, size int) {
	if e.metrics != nil {
		e.metrics.RecordElevationBatch(outcome, size)
	}
}
