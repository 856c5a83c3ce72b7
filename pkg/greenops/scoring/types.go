package scoring

import (
	"context"
	"errors"
)

// ErrUnavailable marks any failure to obtain a usable answer from a scoring
// service: transport errors, exhausted retries, or a response that does not
// match the model contract. Callers must treat it as "no model contribution",
// never as "no anomaly".
var ErrUnavailable = errors.New("scoring service unavailable")

// Prediction is one classification result from the outlier model
type Prediction struct {
	Label int     `json:"label"` // 1 = anomaly, 0 = normal
	Score float64 `json:"score"` // Probability of the anomaly class, [0,1]
}

// Scorer classifies batches of feature vectors. Field names and order are
// part of the model contract and must match the deployment's training data.
type Scorer interface {
	ScoreBatch(ctx context.Context, fields []string, vectors [][]float64) ([]Prediction, error)
}

// Regressor predicts a single scalar from one feature vector
type Regressor interface {
	PredictScalar(ctx context.Context, fields []string, vector []float64) (float64, error)
}

// scorePayload is the request shape shared by both deployments
type scorePayload struct {
	InputData []inputData `json:"input_data"`
}

type inputData struct {
	Fields []string    `json:"fields"`
	Values [][]float64 `json:"values"`
}

// scoreResponse is the deployment's answer envelope
type scoreResponse struct {
	Predictions []predictionData `json:"predictions"`
}

type predictionData struct {
	Fields []string        `json:"fields,omitempty"`
	Values [][]interface{} `json:"values"`
}
