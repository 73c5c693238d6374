package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsift/mailsift/internal/types"
)

func rec(id, subject string) types.EmailRecord {
	return types.EmailRecord{
		ID:          id,
		ThreadID:    "t-" + id,
		Date:        "2026-08-01",
		Sender:      "Alice <alice@example.com>",
		Subject:     subject,
		Body:        "body of " + id,
		Categories:  []string{"announcements", "deadlines"},
		ProcessedAt: "2026-08-01T09:15:10Z",
	}
}

func newRecords(t *testing.T) (*RecordStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "processed_emails.json")
	s, err := NewRecordStore(path)
	require.NoError(t, err)
	return s, path
}

func idSet(recs []types.EmailRecord) map[string]bool {
	out := make(map[string]bool, len(recs))
	for _, r := range recs {
		out[r.ID] = true
	}
	return out
}

func TestRecordsRoundTripAcrossRestart(t *testing.T) {
	s, path := newRecords(t)

	want := []types.EmailRecord{rec("m1", "one"), rec("m2", "two"), rec("m3", "three")}
	require.NoError(t, s.UpsertMany(want))

	// Simulated restart: fresh instance over the same file.
	reopened, err := NewRecordStore(path)
	require.NoError(t, err)

	got, err := reopened.GetAll()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, idSet(want), idSet(got))
	assert.Equal(t, want, got)
}

func TestRecordsUpsertIsIdempotent(t *testing.T) {
	s, _ := newRecords(t)

	r := rec("m1", "subject")
	require.NoError(t, s.Upsert(r))
	require.NoError(t, s.Upsert(r))

	got, err := s.GetAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r, got[0])
}

func TestRecordsUpsertFullyReplaces(t *testing.T) {
	s, _ := newRecords(t)
	require.NoError(t, s.Upsert(rec("m1", "old subject")))

	updated := rec("m1", "new subject")
	updated.Categories = []string{"personal", "information"}
	require.NoError(t, s.Upsert(updated))

	got, err := s.Get("m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new subject", got.Subject)
	assert.Equal(t, []string{"personal", "information"}, got.Categories)
}

func TestRecordsGetMissing(t *testing.T) {
	s, _ := newRecords(t)

	got, err := s.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRecordsReadsLegacyWrappedShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_emails.json")
	legacy := map[string]any{
		"emails": map[string]any{
			"m1": rec("m1", "legacy one"),
			"m2": rec("m2", "legacy two"),
		},
	}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s, err := NewRecordStore(path)
	require.NoError(t, err)

	got, err := s.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"m1": true, "m2": true}, idSet(got))

	one, err := s.Get("m1")
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, "legacy one", one.Subject)
}

func TestRecordsWritesCanonicalFlatList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_emails.json")
	legacy := map[string]any{"emails": map[string]any{"m1": rec("m1", "legacy")}}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s, err := NewRecordStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(rec("m2", "fresh")))

	// Any write migrates the file to the canonical list shape.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var asList []types.EmailRecord
	require.NoError(t, json.Unmarshal(raw, &asList))
	assert.Equal(t, map[string]bool{"m1": true, "m2": true}, idSet(asList))
}

func TestRecordsOverwriteAll(t *testing.T) {
	s, _ := newRecords(t)
	require.NoError(t, s.UpsertMany([]types.EmailRecord{rec("m1", "a"), rec("m2", "b")}))

	require.NoError(t, s.OverwriteAll([]types.EmailRecord{rec("m3", "c")}))

	got, err := s.GetAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m3", got[0].ID)

	require.NoError(t, s.OverwriteAll(nil))
	got, err = s.GetAll()
	require.NoError(t, err)
	assert.Empty(t, got)
}
