package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"k8s.io/klog/v2"

	"github.com/plant-ops/greenops-engine/pkg/greenops/config"
)

// HTTPClient interface allows mocking http.Client in tests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one deployed scoring endpoint with bounded timeouts,
// retries with backoff, and rate limiting. One Client per deployment.
type Client struct {
	url         string
	cfg         config.ScoringConfig
	httpClient  HTTPClient
	rateLimiter *time.Ticker
	cache       *responseCache
}

// ClientOption allows customizing the client
type ClientOption func(*Client)

// WithHTTPClient allows injecting a custom HTTP client
func WithHTTPClient(client HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a client for one scoring deployment URL
func NewClient(url string, cfg config.ScoringConfig, opts ...ClientOption) *Client {
	client := &Client{
		url: url,
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: time.NewTicker(time.Second / time.Duration(cfg.RateLimit)),
	}
	if cfg.CacheTTL > 0 {
		client.cache = newResponseCache(cfg.CacheTTL)
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// ScoreBatch submits a batch of feature vectors and returns one prediction
// per vector, in input order.
func (c *Client) ScoreBatch(ctx context.Context, fields []string, vectors [][]float64) ([]Prediction, error) {
	resp, err := c.score(ctx, fields, vectors)
	if err != nil {
		return nil, err
	}

	if len(resp.Predictions) == 0 {
		return nil, fmt.Errorf("%w: response carried no predictions", ErrUnavailable)
	}
	values := resp.Predictions[0].Values
	if len(values) != len(vectors) {
		return nil, fmt.Errorf("%w: expected %d predictions, got %d", ErrUnavailable, len(vectors), len(values))
	}

	predictions := make([]Prediction, 0, len(values))
	for i, row := range values {
		p, err := parseClassification(row)
		if err != nil {
			return nil, fmt.Errorf("%w: prediction %d: %v", ErrUnavailable, i, err)
		}
		predictions = append(predictions, p)
	}
	return predictions, nil
}

// PredictScalar submits one feature vector and returns the regression output
func (c *Client) PredictScalar(ctx context.Context, fields []string, vector []float64) (float64, error) {
	resp, err := c.score(ctx, fields, [][]float64{vector})
	if err != nil {
		return 0, err
	}

	if len(resp.Predictions) == 0 || len(resp.Predictions[0].Values) == 0 {
		return 0, fmt.Errorf("%w: response carried no predictions", ErrUnavailable)
	}
	value, err := parseScalar(resp.Predictions[0].Values[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, nil
}

func (c *Client) score(ctx context.Context, fields []string, vectors [][]float64) (*scoreResponse, error) {
	if c.url == "" {
		return nil, fmt.Errorf("%w: no deployment URL configured", ErrUnavailable)
	}
	for _, vector := range vectors {
		if len(vector) != len(fields) {
			return nil, fmt.Errorf("%w: vector width %d does not match %d fields", ErrUnavailable, len(vector), len(fields))
		}
	}

	var key uint64
	if c.cache != nil {
		key = cacheKey(fields, vectors)
		if cached, hit := c.cache.get(key); hit {
			klog.V(4).InfoS("Scoring cache hit", "vectors", len(vectors))
			return cached, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: context cancelled: %v", ErrUnavailable, ctx.Err())
		case <-c.rateLimiter.C:
			resp, err := c.doRequest(ctx, fields, vectors)
			if err == nil {
				if c.cache != nil {
					c.cache.put(key, resp)
				}
				return resp, nil
			}
			lastErr = err
			klog.V(2).InfoS("Scoring request failed, retrying",
				"attempt", attempt+1,
				"maxRetries", c.cfg.MaxRetries,
				"error", err)

			timer := time.NewTimer(c.backoffDuration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("%w: context cancelled during backoff: %v", ErrUnavailable, ctx.Err())
			case <-timer.C:
				continue
			}
		}
	}
	return nil, fmt.Errorf("%w: all retries failed: %v", ErrUnavailable, lastErr)
}

func (c *Client) doRequest(ctx context.Context, fields []string, vectors [][]float64) (*scoreResponse, error) {
	payload := scorePayload{
		InputData: []inputData{{Fields: fields, Values: vectors}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Continue processing
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limit exceeded")
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("invalid API key")
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var decoded scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}
	return &decoded, nil
}

func (c *Client) backoffDuration(attempt int) time.Duration {
	backoff := c.cfg.RetryDelay * time.Duration(1<<uint(attempt))
	maxBackoff := 1 * time.Minute
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// Close cleans up client resources
func (c *Client) Close() {
	if c.rateLimiter != nil {
		c.rateLimiter.Stop()
	}
	if c.cache != nil {
		c.cache.close()
	}
}

// parseClassification unpacks the AutoAI classification row shape:
// [prediction, [probability_0, probability_1]]
func parseClassification(row []interface{}) (Prediction, error) {
	if len(row) < 2 {
		return Prediction{}, fmt.Errorf("classification row has %d elements, want 2", len(row))
	}

	label, ok := row[0].(float64)
	if !ok {
		return Prediction{}, fmt.Errorf("label is not numeric")
	}

	probs, ok := row[1].([]interface{})
	if !ok || len(probs) < 2 {
		return Prediction{}, fmt.Errorf("probability pair missing")
	}
	score, ok := probs[1].(float64)
	if !ok {
		return Prediction{}, fmt.Errorf("anomaly probability is not numeric")
	}
	if score < 0 || score > 1 {
		return Prediction{}, fmt.Errorf("anomaly probability %f outside [0,1]", score)
	}

	return Prediction{Label: int(label), Score: score}, nil
}

// parseScalar unpacks a regression row, tolerating the deployment's
// occasional [[value]] double nesting.
func parseScalar(row []interface{}) (float64, error) {
	if len(row) == 0 {
		return 0, fmt.Errorf("empty prediction row")
	}
	switch v := row[0].(type) {
	case float64:
		return v, nil
	case []interface{}:
		if len(v) > 0 {
			if inner, ok := v[0].(float64); ok {
				return inner, nil
			}
		}
	}
	return 0, fmt.Errorf("prediction is not numeric")
}
