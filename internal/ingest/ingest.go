// Package ingest orchestrates the list -> filter -> fetch -> classify
// -> persist pipeline.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mailsift/mailsift/internal/classifier"
	"github.com/mailsift/mailsift/internal/types"
)

// topCategories is how many labels every persisted record carries.
const topCategories = 2

// Source lists and fetches messages from the mail provider.
type Source interface {
	// List returns up to maxResults message IDs in provider order. It
	// never fails; a partial page sequence is returned as-is.
	List(ctx context.Context, query string, maxResults int64) []string
	Fetch(ctx context.Context, id string) (*types.Message, error)
}

// DedupSet is the durable set of already-classified message IDs.
type DedupSet interface {
	Has(id string) bool
	Add(id string) error
	AddMany(ids []string) error
	Clear() error
}

// RecordStore is the durable keyed map of classified records.
type RecordStore interface {
	GetAll() ([]types.EmailRecord, error)
	Get(id string) (*types.EmailRecord, error)
	Upsert(rec types.EmailRecord) error
	UpsertMany(recs []types.EmailRecord) error
	OverwriteAll(recs []types.EmailRecord) error
}

// Orchestrator ties the source, stores and classifier together. One
// ingestion call runs as a single sequential pipeline; concurrent calls
// are safe because both stores serialize their own mutations and
// upserts are idempotent.
type Orchestrator struct {
	gateway   classifier.Gateway
	processed DedupSet
	records   RecordStore
	cache     *Cache
	batchSize int
	log       *slog.Logger
}

// New builds an orchestrator. batchSize bounds how many messages the
// classifier holds in memory per batch call; values < 1 fall back to 3.
func New(gateway classifier.Gateway, processed DedupSet, records RecordStore, cache *Cache, batchSize int, log *slog.Logger) *Orchestrator {
	if batchSize < 1 {
		batchSize = 3
	}
	if cache == nil {
		cache = NewCache()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		gateway:   gateway,
		processed: processed,
		records:   records,
		cache:     cache,
		batchSize: batchSize,
		log:       log,
	}
}

// Cache exposes the caller-visible record cache.
func (o *Orchestrator) Cache() *Cache {
	return o.cache
}

// searchWindow widens the listing beyond the requested batch so that
// already-processed IDs interleaved in the provider's ordering still
// leave enough fresh candidates.
func searchWindow(requested int) int64 {
	return int64(min(500, max(50, requested*10)))
}

// Ingest fetches up to requested not-yet-processed messages matching
// query from src, classifies them, and durably persists the successes.
//
// A message ID is marked processed if and only if its record was
// persisted in this same call: transiently failing items (fetch error,
// unsuccessful classification, fewer than two labels) are skipped and
// stay eligible for the next call. An error is returned only when
// persistence itself fails; classification failures degrade to a
// smaller (possibly empty) result.
func (o *Orchestrator) Ingest(ctx context.Context, src Source, query string, requested int) (*types.IngestResult, error) {
	if requested < 1 {
		requested = 1
	}

	ids := src.List(ctx, query, searchWindow(requested))

	var fresh []string
	for _, id := range ids {
		if id == "" || o.processed.Has(id) {
			continue
		}
		fresh = append(fresh, id)
	}
	if len(fresh) > requested {
		fresh = fresh[:requested]
	}
	o.log.Info("ingest: listed candidates",
		"scanned", len(ids), "new", len(fresh), "requested", requested)

	var messages []*types.Message
	for _, id := range fresh {
		msg, err := src.Fetch(ctx, id)
		if err != nil {
			// Not marked processed, so it stays eligible next call.
			o.log.Warn("ingest: fetch failed, skipping message", "id", id, "error", err)
			continue
		}
		messages = append(messages, msg)
	}
	if len(messages) == 0 {
		return &types.IngestResult{Processed: []types.EmailRecord{}}, nil
	}

	inputs := make([]types.ClassifyInput, len(messages))
	for i, m := range messages {
		inputs[i] = types.ClassifyInput{Subject: m.Subject, Body: m.Body}
	}

	results, err := o.gateway.PredictBatch(ctx, inputs, topCategories, o.batchSize)
	if err == nil && len(results) != len(messages) {
		// A gateway that breaks the parallel-length contract is treated
		// the same as a whole-batch failure.
		err = fmt.Errorf("batch classify: got %d results for %d messages", len(results), len(messages))
	}
	if err != nil {
		// Whole-batch failure: reprocess the identical fetched set one
		// message at a time.
		o.log.Warn("ingest: batch classification failed, falling back to single predictions", "error", err)
		results = make([]types.ClassificationResult, len(messages))
		for i, m := range messages {
			results[i] = o.gateway.Predict(ctx, m.Subject, m.Body, topCategories)
		}
	}

	var newRecords []types.EmailRecord
	for i, m := range messages {
		rec, ok := o.buildRecord(m, results[i])
		if !ok {
			continue
		}
		newRecords = append(newRecords, rec)
	}

	if err := o.persist(newRecords); err != nil {
		return nil, err
	}

	o.log.Info("ingest: done", "classified", len(newRecords), "fetched", len(messages))
	return &types.IngestResult{NewCount: len(newRecords), Processed: newRecords}, nil
}

// Reclassify re-runs fetch -> classify -> upsert for one explicit
// message regardless of its processed state, fully replacing any
// existing record.
func (o *Orchestrator) Reclassify(ctx context.Context, src Source, id string) (*types.EmailRecord, error) {
	msg, err := src.Fetch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", id, err)
	}

	res := o.gateway.Predict(ctx, msg.Subject, msg.Body, topCategories)
	rec, ok := o.buildRecord(msg, res)
	if !ok {
		if res.Err != "" {
			return nil, fmt.Errorf("classify %s: %s", id, res.Err)
		}
		return nil, fmt.Errorf("classify %s: model returned fewer than %d categories", id, topCategories)
	}

	if err := o.persist([]types.EmailRecord{rec}); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ClearAll wipes both stores and the cache. This is the only way
// records or processed IDs are ever deleted.
func (o *Orchestrator) ClearAll() error {
	if err := o.records.OverwriteAll(nil); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	if err := o.processed.Clear(); err != nil {
		return fmt.Errorf("clear processed ids: %w", err)
	}
	o.cache.Clear()
	return nil
}

// RefreshCache rebuilds the cache from the record store.
func (o *Orchestrator) RefreshCache() error {
	records, err := o.records.GetAll()
	if err != nil {
		return fmt.Errorf("refresh cache: %w", err)
	}
	o.cache.Refresh(records)
	return nil
}

// buildRecord turns a classified message into a record, enforcing the
// exactly-two-categories invariant. Dropped items are logged and left
// unprocessed so a later call can retry them.
func (o *Orchestrator) buildRecord(m *types.Message, res types.ClassificationResult) (types.EmailRecord, bool) {
	if !res.Success {
		o.log.Warn("ingest: classification unsuccessful, dropping message", "id", m.ID, "error", res.Err)
		return types.EmailRecord{}, false
	}
	if len(res.Labels) < topCategories {
		o.log.Warn("ingest: model returned too few categories, dropping message",
			"id", m.ID, "categories", len(res.Labels))
		return types.EmailRecord{}, false
	}

	return types.EmailRecord{
		ID:          m.ID,
		ThreadID:    m.ThreadID,
		Date:        m.Date,
		Sender:      m.Sender,
		Subject:     m.Subject,
		Body:        m.Body,
		Categories:  append([]string(nil), res.Labels[:topCategories]...),
		ProcessedAt: types.Now(),
	}, true
}

// persist durably writes records, then marks their IDs processed, then
// merges them into the cache. Records go first so a crash in between
// re-runs classification next call rather than losing the message.
func (o *Orchestrator) persist(recs []types.EmailRecord) error {
	if len(recs) == 0 {
		return nil
	}

	if err := o.records.UpsertMany(recs); err != nil {
		return fmt.Errorf("persist records: %w", err)
	}

	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	if err := o.processed.AddMany(ids); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	o.cache.Merge(recs)
	return nil
}
