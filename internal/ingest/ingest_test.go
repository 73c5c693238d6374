package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsift/mailsift/internal/ingest"
	"github.com/mailsift/mailsift/internal/store"
	"github.com/mailsift/mailsift/internal/types"
)

// fakeSource serves a fixed id list and message map, recording what
// gets fetched.
type fakeSource struct {
	mu       sync.Mutex
	ids      []string
	fetchErr map[string]error
	fetched  []string
}

func newFakeSource(ids ...string) *fakeSource {
	return &fakeSource{ids: ids, fetchErr: make(map[string]error)}
}

func (f *fakeSource) List(ctx context.Context, query string, maxResults int64) []string {
	if int64(len(f.ids)) > maxResults {
		return f.ids[:maxResults]
	}
	return f.ids
}

func (f *fakeSource) Fetch(ctx context.Context, id string) (*types.Message, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	f.mu.Unlock()

	if err := f.fetchErr[id]; err != nil {
		return nil, err
	}
	return &types.Message{
		ID:       id,
		ThreadID: "thread-" + id,
		Date:     "2026-08-20",
		Sender:   "sender@example.com",
		Subject:  "subject " + id,
		Body:     "body " + id,
	}, nil
}

// fakeGateway classifies everything successfully unless told otherwise.
type fakeGateway struct {
	mu           sync.Mutex
	batchErr     error
	batchShort   bool // drop the last batch result, breaking the parallel-length contract
	resultFor    map[string]types.ClassificationResult // keyed by subject
	predictCalls []string
	batchCalls   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{resultFor: make(map[string]types.ClassificationResult)}
}

func (f *fakeGateway) classify(subject string) types.ClassificationResult {
	if res, ok := f.resultFor[subject]; ok {
		return res
	}
	return types.ClassificationResult{
		Success:     true,
		Labels:      []string{"announcements", "deadlines"},
		Confidences: []float64{0.9, 0.7},
	}
}

func (f *fakeGateway) Predict(ctx context.Context, subject, body string, topK int) types.ClassificationResult {
	f.mu.Lock()
	f.predictCalls = append(f.predictCalls, subject)
	f.mu.Unlock()
	return f.classify(subject)
}

func (f *fakeGateway) PredictBatch(ctx context.Context, inputs []types.ClassifyInput, topK, batchSize int) ([]types.ClassificationResult, error) {
	f.mu.Lock()
	f.batchCalls++
	f.mu.Unlock()

	if f.batchErr != nil {
		return nil, f.batchErr
	}
	results := make([]types.ClassificationResult, len(inputs))
	for i, in := range inputs {
		results[i] = f.classify(in.Subject)
	}
	if f.batchShort && len(results) > 0 {
		results = results[:len(results)-1]
	}
	return results, nil
}

func (f *fakeGateway) AllProbabilities(ctx context.Context, subject, body string) ([]types.CategoryProbability, error) {
	return nil, errors.New("not implemented")
}

type fixture struct {
	orch      *ingest.Orchestrator
	processed *store.ProcessedIDStore
	records   *store.RecordStore
	gateway   *fakeGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	processed, err := store.NewProcessedIDStore(filepath.Join(dir, "processed_ids.json"))
	require.NoError(t, err)
	records, err := store.NewRecordStore(filepath.Join(dir, "processed_emails.json"))
	require.NoError(t, err)

	gateway := newFakeGateway()
	return &fixture{
		orch:      ingest.New(gateway, processed, records, ingest.NewCache(), 3, nil),
		processed: processed,
		records:   records,
		gateway:   gateway,
	}
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("m%02d", i)
	}
	return out
}

func TestIngestSkipsAlreadyProcessed(t *testing.T) {
	fx := newFixture(t)

	all := ids(40)
	done := []string{all[3], all[10], all[17], all[24], all[31]}
	require.NoError(t, fx.processed.AddMany(done))

	src := newFakeSource(all...)
	result, err := fx.orch.Ingest(context.Background(), src, "", 30)
	require.NoError(t, err)

	// 35 unprocessed candidates, truncated to the requested 30.
	assert.Equal(t, 30, result.NewCount)
	assert.Len(t, result.Processed, 30)

	for _, id := range done {
		assert.NotContains(t, src.fetched, id, "already-processed ids must never be refetched")
	}

	stored, err := fx.records.GetAll()
	require.NoError(t, err)
	assert.Len(t, stored, 30)
}

func TestIngestTruncationPreservesProviderOrder(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.processed.Add("m00"))

	src := newFakeSource(ids(5)...)
	result, err := fx.orch.Ingest(context.Background(), src, "", 3)
	require.NoError(t, err)

	got := make([]string, len(result.Processed))
	for i, rec := range result.Processed {
		got[i] = rec.ID
	}
	assert.Equal(t, []string{"m01", "m02", "m03"}, got)
}

func TestIngestFallsBackToSingleOnWholeBatchFailure(t *testing.T) {
	fx := newFixture(t)
	fx.gateway.batchErr = errors.New("model crashed")

	src := newFakeSource("a", "b", "c")
	result, err := fx.orch.Ingest(context.Background(), src, "", 10)
	require.NoError(t, err)

	assert.Equal(t, 1, fx.gateway.batchCalls)
	assert.Equal(t, []string{"subject a", "subject b", "subject c"}, fx.gateway.predictCalls,
		"every fetched message must be retried individually")
	assert.Equal(t, 3, result.NewCount)

	assert.True(t, fx.processed.Has("a"))
	assert.True(t, fx.processed.Has("c"))
}

func TestIngestTreatsShortBatchAsWholeBatchFailure(t *testing.T) {
	fx := newFixture(t)
	fx.gateway.batchShort = true

	src := newFakeSource("a", "b", "c")
	result, err := fx.orch.Ingest(context.Background(), src, "", 10)
	require.NoError(t, err)

	// A batch response shorter than its input must never be indexed by
	// message position; the whole set goes through single predictions.
	assert.Equal(t, []string{"subject a", "subject b", "subject c"}, fx.gateway.predictCalls)
	assert.Equal(t, 3, result.NewCount)
	assert.True(t, fx.processed.Has("c"))
}

func TestIngestDropsItemsWithFewerThanTwoLabels(t *testing.T) {
	fx := newFixture(t)
	fx.gateway.resultFor["subject b"] = types.ClassificationResult{
		Success: true, Labels: []string{"only-one"}, Confidences: []float64{0.5},
	}
	fx.gateway.resultFor["subject c"] = types.ClassificationResult{
		Success: false, Err: "inference failed",
	}

	src := newFakeSource("a", "b", "c")
	result, err := fx.orch.Ingest(context.Background(), src, "", 10)
	require.NoError(t, err)

	assert.Equal(t, 1, result.NewCount)
	assert.Equal(t, "a", result.Processed[0].ID)

	// Dropped items keep their retry eligibility.
	assert.False(t, fx.processed.Has("b"))
	assert.False(t, fx.processed.Has("c"))
	got, err := fx.records.Get("b")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIngestSkipsFetchFailures(t *testing.T) {
	fx := newFixture(t)

	src := newFakeSource("a", "b", "c")
	src.fetchErr["b"] = errors.New("transient network error")

	result, err := fx.orch.Ingest(context.Background(), src, "", 10)
	require.NoError(t, err)

	assert.Equal(t, 2, result.NewCount)
	assert.False(t, fx.processed.Has("b"), "a failed fetch must stay eligible for the next call")
	assert.True(t, fx.processed.Has("a"))
}

func TestIngestMarksProcessedIffPersisted(t *testing.T) {
	fx := newFixture(t)
	fx.gateway.resultFor["subject b"] = types.ClassificationResult{Success: false, Err: "nope"}

	src := newFakeSource("a", "b", "c")
	_, err := fx.orch.Ingest(context.Background(), src, "", 10)
	require.NoError(t, err)

	stored, err := fx.records.GetAll()
	require.NoError(t, err)

	storedIDs := make(map[string]bool)
	for _, rec := range stored {
		storedIDs[rec.ID] = true
	}
	for _, id := range fx.processed.All() {
		assert.True(t, storedIDs[id], "processed id %s has no persisted record", id)
	}
	for id := range storedIDs {
		assert.True(t, fx.processed.Has(id), "persisted record %s not marked processed", id)
	}
}

func TestIngestRecordShape(t *testing.T) {
	fx := newFixture(t)

	src := newFakeSource("a")
	result, err := fx.orch.Ingest(context.Background(), src, "", 1)
	require.NoError(t, err)
	require.Len(t, result.Processed, 1)

	rec := result.Processed[0]
	assert.Equal(t, "a", rec.ID)
	assert.Equal(t, "thread-a", rec.ThreadID)
	assert.Len(t, rec.Categories, 2)
	assert.Equal(t, []string{"announcements", "deadlines"}, rec.Categories)
	assert.NotEmpty(t, rec.ProcessedAt)
}

func TestIngestEmptyMailbox(t *testing.T) {
	fx := newFixture(t)

	result, err := fx.orch.Ingest(context.Background(), newFakeSource(), "", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, result.NewCount)
	assert.Empty(t, result.Processed)
}

func TestIngestSecondRunFindsNothingNew(t *testing.T) {
	fx := newFixture(t)
	src := newFakeSource("a", "b")

	first, err := fx.orch.Ingest(context.Background(), src, "", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, first.NewCount)

	second, err := fx.orch.Ingest(context.Background(), src, "", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, second.NewCount)

	stored, err := fx.records.GetAll()
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestConcurrentIngestDisjointSetsBothSurvive(t *testing.T) {
	fx := newFixture(t)

	srcA := newFakeSource("a1", "a2", "a3")
	srcB := newFakeSource("b1", "b2", "b3")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := fx.orch.Ingest(context.Background(), srcA, "", 10)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := fx.orch.Ingest(context.Background(), srcB, "", 10)
		assert.NoError(t, err)
	}()
	wg.Wait()

	stored, err := fx.records.GetAll()
	require.NoError(t, err)
	assert.Len(t, stored, 6)
	for _, id := range []string{"a1", "a2", "a3", "b1", "b2", "b3"} {
		assert.True(t, fx.processed.Has(id))
	}
}

func TestReclassifyReplacesExistingRecord(t *testing.T) {
	fx := newFixture(t)
	src := newFakeSource("a")

	_, err := fx.orch.Ingest(context.Background(), src, "", 1)
	require.NoError(t, err)

	fx.gateway.resultFor["subject a"] = types.ClassificationResult{
		Success:     true,
		Labels:      []string{"personal", "social"},
		Confidences: []float64{0.8, 0.6},
	}

	rec, err := fx.orch.Reclassify(context.Background(), src, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"personal", "social"}, rec.Categories)

	stored, err := fx.records.GetAll()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, []string{"personal", "social"}, stored[0].Categories)
}

func TestReclassifyFailsOnShortResult(t *testing.T) {
	fx := newFixture(t)
	fx.gateway.resultFor["subject a"] = types.ClassificationResult{
		Success: true, Labels: []string{"one"}, Confidences: []float64{0.4},
	}

	_, err := fx.orch.Reclassify(context.Background(), newFakeSource("a"), "a")
	require.Error(t, err)
}

func TestClearAllWipesStoresAndCache(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.orch.Ingest(context.Background(), newFakeSource("a", "b"), "", 10)
	require.NoError(t, err)
	require.Equal(t, 2, fx.orch.Cache().Len())

	require.NoError(t, fx.orch.ClearAll())

	stored, err := fx.records.GetAll()
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Empty(t, fx.processed.All())
	assert.Zero(t, fx.orch.Cache().Len())
}

func TestCacheMergeDeduplicatesByID(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.orch.Ingest(context.Background(), newFakeSource("a", "b"), "", 10)
	require.NoError(t, err)

	// Reclassifying merges the replacement, not a duplicate.
	_, err = fx.orch.Reclassify(context.Background(), newFakeSource("a"), "a")
	require.NoError(t, err)

	assert.Equal(t, 2, fx.orch.Cache().Len())
}
