package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/mailsift/mailsift/internal/types"
)

// HTTPGateway talks to the classifier service over its JSON API.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway creates a gateway for the classifier service at
// baseURL. A zero timeout falls back to 60s.
func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	TopK    int    `json:"top_k"`
}

type batchRequest struct {
	Emails    []types.ClassifyInput `json:"emails"`
	TopK      int                   `json:"top_k"`
	BatchSize int                   `json:"batch_size"`
}

type batchResponse struct {
	Results []types.ClassificationResult `json:"results"`
}

type probabilitiesRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type probabilitiesResponse struct {
	Probabilities []types.CategoryProbability `json:"probabilities"`
}

// Predict classifies one email. Failures are reported in the result,
// never as an error.
func (g *HTTPGateway) Predict(ctx context.Context, subject, body string, topK int) types.ClassificationResult {
	var res types.ClassificationResult
	err := g.post(ctx, "/predict", predictRequest{Subject: subject, Body: body, TopK: topK}, &res)
	if err != nil {
		return types.ClassificationResult{Success: false, Err: err.Error()}
	}
	return res
}

// PredictBatch classifies inputs in one call, batchSize bounding how
// many the model holds in memory at once. The returned slice parallels
// inputs; a non-nil error is a whole-call failure.
func (g *HTTPGateway) PredictBatch(ctx context.Context, inputs []types.ClassifyInput, topK, batchSize int) ([]types.ClassificationResult, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	var res batchResponse
	err := g.post(ctx, "/predict-batch", batchRequest{Emails: inputs, TopK: topK, BatchSize: batchSize}, &res)
	if err != nil {
		return nil, err
	}
	if len(res.Results) != len(inputs) {
		return nil, fmt.Errorf("batch predict: got %d results for %d inputs", len(res.Results), len(inputs))
	}
	return res.Results, nil
}

// AllProbabilities returns the probability of every known category,
// sorted descending.
func (g *HTTPGateway) AllProbabilities(ctx context.Context, subject, body string) ([]types.CategoryProbability, error) {
	var res probabilitiesResponse
	err := g.post(ctx, "/probabilities", probabilitiesRequest{Subject: subject, Body: body}, &res)
	if err != nil {
		return nil, err
	}
	probs := res.Probabilities
	sort.SliceStable(probs, func(i, j int) bool {
		return probs[i].Probability > probs[j].Probability
	})
	return probs, nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("call classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("classifier returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
