// Package classifier is the boundary to the external multi-label email
// classification service.
package classifier

import (
	"context"

	"github.com/mailsift/mailsift/internal/types"
)

// Gateway is the full contract the ingestion core depends on. The
// model's internals (architecture, training) live behind it.
//
// Predict never fails past this boundary: internal errors come back as
// a result with Success=false. PredictBatch returns one result per
// input in input order; a non-nil error means the whole call failed
// (as opposed to per-item failures inside an otherwise successful
// response), which is what triggers the orchestrator's single-message
// fallback.
type Gateway interface {
	Predict(ctx context.Context, subject, body string, topK int) types.ClassificationResult
	PredictBatch(ctx context.Context, inputs []types.ClassifyInput, topK, batchSize int) ([]types.ClassificationResult, error)
	AllProbabilities(ctx context.Context, subject, body string) ([]types.CategoryProbability, error)
}
