package mock

import (
	"context"

	"github.com/plant-ops/greenops-engine/pkg/greenops/scoring"
)

// MockScorer implements scoring.Scorer and scoring.Regressor for testing
type MockScorer struct {
	ScoreBatchFunc    func(ctx context.Context, fields []string, vectors [][]float64) ([]scoring.Prediction, error)
	PredictScalarFunc func(ctx context.Context, fields []string, vector []float64) (float64, error)
}

// ScoreBatch delegates to the mock function
func (m *MockScorer) ScoreBatch(ctx context.Context, fields []string, vectors [][]float64) ([]scoring.Prediction, error) {
	if m.ScoreBatchFunc != nil {
		return m.ScoreBatchFunc(ctx, fields, vectors)
	}
	return make([]scoring.Prediction, len(vectors)), nil
}

// PredictScalar delegates to the mock function
func (m *MockScorer) PredictScalar(ctx context.Context, fields []string, vector []float64) (float64, error) {
	if m.PredictScalarFunc != nil {
		return m.PredictScalarFunc(ctx, fields, vector)
	}
	return 0, nil
}
