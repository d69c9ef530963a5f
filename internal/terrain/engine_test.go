package terrain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/elevation"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/geospatial"
)

// MockProvider is a mock implementation of elevation.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Lookup(ctx context.Context, points []geospatial.Vertex) ([]elevation.Sample, error) {
	args := m.Called(ctx, points)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]elevation.Sample), args.Error(1)
}

func (m *MockProvider) BatchLimit() int {
	args := m.Called()
	return args.Int(0)
}

// fakeProvider answers with elevation = lat*1000 and counts calls.
type fakeProvider struct {
	limit  int
	calls  int
	failAt int
	onCall func(call int)
}

func (f *fakeProvider) BatchLimit() int { return f.limit }

func (f *fakeProvider) Lookup(ctx context.Context, points []geospatial.Vertex) ([]elevation.Sample, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall(f.calls)
	}
	if f.failAt > 0 && f.calls == f.failAt {
		return nil, errors.New(`status "INVALID_REQUEST"`)
	}
	out := make([]elevation.Sample, len(points))
	for i, p := range points {
		out[i] = elevation.Sample{Location: p, Elevation: p.Lat * 1000}
	}
	return out, nil
}

type recordedMetrics struct {
	analyses []string
	batches  []string
}

func (r *recordedMetrics) RecordAnalysis(outcome string, _ time.Duration, _ int) {
	r.analyses = append(r.analyses, outcome)
}

func (r *recordedMetrics) RecordElevationBatch(outcome string, _ int) {
	r.batches = append(r.batches, outcome)
}

func TestAnalyzeRequiresPolygon(t *testing.T) {
	provider := new(MockProvider)
	metrics := &recordedMetrics{}
	engine := NewEngine(provider, zap.NewNop(), WithMetricsRecorder(metrics))

	for _, p := range []geospatial.Polygon{nil, {}, {{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}} {
		res, err := engine.Analyze(context.Background(), p, 0)
		assert.ErrorIs(t, err, ErrPolygonRequired)
		assert.Nil(t, res)
	}

	provider.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
	assert.Equal(t, []string{"rejected", "rejected", "rejected"}, metrics.analyses)
}

func TestAnalyzeBatchesAndStatistics(t *testing.T) {
	provider := &fakeProvider{limit: 7}
	engine := NewEngine(provider, zap.NewNop())

	res, err := engine.Analyze(context.Background(), square(), 5)
	require.NoError(t, err)

	require.Len(t, res.Samples, 16)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, 3, provider.calls)

	assert.Equal(t, 0.0, res.MinElevation)
	assert.Equal(t, 750.0, res.MaxElevation)
	assert.Equal(t, "#0000ff", res.Samples[0].Color)
	assert.Equal(t, "#ff0000", res.Samples[len(res.Samples)-1].Color)

	assert.Equal(t, 15, res.Slope.Count)
	assert.Equal(t, 0.0, res.Slope.Min)
	assert.Greater(t, res.Slope.Max, 0.0)
	assert.Equal(t, res.Slope.Average, res.AvgSlope)
}

func TestAnalyzeUsesDefaultResolution(t *testing.T) {
	provider := &fakeProvider{limit: 100}
	engine := NewEngine(provider, nil)

	res, err := engine.Analyze(context.Background(), square(), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultResolution, res.Grid.Resolution)
	assert.Equal(t, 400, res.Grid.Candidates)
}

func TestAnalyzeRejectsResolution(t *testing.T) {
	engine := NewEngine(&fakeProvider{limit: 10}, nil, WithResolution(10, 30))

	_, err := engine.Analyze(context.Background(), square(), 31)
	assert.ErrorIs(t, err, ErrInvalidResolution)

	_, err = engine.Analyze(context.Background(), square(), -1)
	assert.ErrorIs(t, err, ErrInvalidResolution)
}

func TestAnalyzeBatchFailureIsFatal(t *testing.T) {
	provider := &fakeProvider{limit: 5, failAt: 2}
	metrics := &recordedMetrics{}
	engine := NewEngine(provider, zap.NewNop(), WithMetricsRecorder(metrics))

	polygon := square()
	before := polygon.Clone()

	res, err := engine.Analyze(context.Background(), polygon, 5)
	assert.ErrorIs(t, err, ErrElevationQueryFailed)
	assert.Nil(t, res)
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, before, polygon)
	assert.Equal(t, []string{"ok", "failed"}, metrics.batches)
	assert.Equal(t, []string{"failed"}, metrics.analyses)
}

func TestAnalyzeCancelledBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := &fakeProvider{limit: 4, onCall: func(call int) {
		if call == 2 {
			cancel()
		}
	}}
	metrics := &recordedMetrics{}
	engine := NewEngine(provider, zap.NewNop(), WithMetricsRecorder(metrics))

	res, err := engine.Analyze(ctx, square(), 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrElevationQueryFailed)
	assert.Nil(t, res)
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, []string{"cancelled"}, metrics.analyses)
}

func TestAnalyzeWithMockProvider(t *testing.T) {
	provider := new(MockProvider)
	provider.On("BatchLimit").Return(100)
	provider.On("Lookup", mock.Anything, mock.Anything).
		Return(nil, elevation.ErrQueryFailed).Once()

	engine := NewEngine(provider, zap.NewNop())
	_, err := engine.Analyze(context.Background(), triangle(), 10)

	assert.ErrorIs(t, err, ErrElevationQueryFailed)
	assert.ErrorIs(t, err, elevation.ErrQueryFailed)
	provider.AssertExpectations(t)
}

func TestAnalyzeSliverPolygon(t *testing.T) {
	provider := &fakeProvider{limit: 10}
	engine := NewEngine(provider, nil)

	// A sliver thinner than the lattice spacing catches no lattice points
	// except the corner on its southern edge.
	sliver := geospatial.Polygon{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1e-9}, {Lat: 0, Lng: 2e-9}}
	res, err := engine.Analyze(context.Background(), sliver, 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Samples), 1)
	assert.Zero(t, res.AvgSlope)
}
