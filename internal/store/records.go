package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/mailsift/mailsift/internal/types"
)

// legacyRecordFile is the historical on-disk shape: an object wrapping
// an id -> record map. Accepted on read only; every write emits the
// canonical flat list.
type legacyRecordFile struct {
	Emails map[string]types.EmailRecord `json:"emails"`
}

// RecordStore is a durable keyed map of message id -> classified email
// record, backed by one JSON file with the same atomic-rename
// discipline as ProcessedIDStore. Upserts are full replacements keyed
// by id; a lock guards each read-modify-write cycle so racing upserts
// cannot lose updates.
type RecordStore struct {
	path string
	mu   sync.Mutex
}

// NewRecordStore opens the store at path, creating an empty list file
// if none exists yet.
func NewRecordStore(path string) (*RecordStore, error) {
	s := &RecordStore{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeAtomic(path, []types.EmailRecord{}); err != nil {
			return nil, fmt.Errorf("initialize record store: %w", err)
		}
	}
	return s, nil
}

// Path returns the backing file path.
func (s *RecordStore) Path() string {
	return s.path
}

// GetAll returns every stored record in file order.
func (s *RecordStore) GetAll() ([]types.EmailRecord, error) {
	return s.read()
}

// Get returns the record for id, or nil if absent.
func (s *RecordStore) Get(id string) (*types.EmailRecord, error) {
	records, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, nil
}

// Upsert inserts rec, fully replacing any existing record with the
// same id.
func (s *RecordStore) Upsert(rec types.EmailRecord) error {
	return s.UpsertMany([]types.EmailRecord{rec})
}

// UpsertMany applies a batch of upserts in one atomic write.
func (s *RecordStore) UpsertMany(recs []types.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}

	index := make(map[string]int, len(records))
	for i, r := range records {
		index[r.ID] = i
	}

	for _, rec := range recs {
		if rec.ID == "" {
			continue
		}
		if i, ok := index[rec.ID]; ok {
			records[i] = rec
		} else {
			index[rec.ID] = len(records)
			records = append(records, rec)
		}
	}

	return writeAtomic(s.path, records)
}

// OverwriteAll replaces the entire store contents. Used only by the
// explicit data-clear operation.
func (s *RecordStore) OverwriteAll(recs []types.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deduped := make([]types.EmailRecord, 0, len(recs))
	seen := make(map[string]int, len(recs))
	for _, rec := range recs {
		if rec.ID == "" {
			continue
		}
		if i, ok := seen[rec.ID]; ok {
			deduped[i] = rec
			continue
		}
		seen[rec.ID] = len(deduped)
		deduped = append(deduped, rec)
	}

	return writeAtomic(s.path, deduped)
}

// read loads the file, migrating the legacy wrapped-map shape into the
// canonical in-memory list.
func (s *RecordStore) read() ([]types.EmailRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []types.EmailRecord{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var records []types.EmailRecord
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var legacy legacyRecordFile
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	records = make([]types.EmailRecord, 0, len(legacy.Emails))
	for _, rec := range legacy.Emails {
		records = append(records, rec)
	}
	return records, nil
}
