package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// processedFile is the on-disk shape of the processed-ID set.
type processedFile struct {
	Processed []string `json:"processed"`
}

// ProcessedIDStore is a durable deduplication set of Gmail message IDs
// that have already been classified. All mutations on one instance are
// serialized by a single lock; reads only ever see a committed file.
type ProcessedIDStore struct {
	path string
	mu   sync.Mutex
}

// NewProcessedIDStore opens the store at path, creating an empty set
// file if none exists yet.
func NewProcessedIDStore(path string) (*ProcessedIDStore, error) {
	s := &ProcessedIDStore{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeAtomic(path, processedFile{Processed: []string{}}); err != nil {
			return nil, fmt.Errorf("initialize processed store: %w", err)
		}
	}
	return s, nil
}

// Path returns the backing file path.
func (s *ProcessedIDStore) Path() string {
	return s.path
}

// Has reports whether id has already been processed.
func (s *ProcessedIDStore) Has(id string) bool {
	_, ok := s.read()[id]
	return ok
}

// Add marks one id as processed. Idempotent: adding a known id is a
// no-op and does not rewrite the file.
func (s *ProcessedIDStore) Add(id string) error {
	if id == "" {
		return nil
	}
	return s.AddMany([]string{id})
}

// AddMany marks every id in ids as processed in one write. Idempotent.
func (s *ProcessedIDStore) AddMany(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.read()
	changed := false
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := set[id]; !ok {
			set[id] = struct{}{}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.write(set)
}

// All returns every processed id, sorted.
func (s *ProcessedIDStore) All() []string {
	set := s.read()
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear resets the set to empty. Used only by the explicit data-clear
// operation; individual ids are never expired.
func (s *ProcessedIDStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(map[string]struct{}{})
}

func (s *ProcessedIDStore) read() map[string]struct{} {
	set := make(map[string]struct{})
	data, err := os.ReadFile(s.path)
	if err != nil {
		return set
	}
	var pf processedFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return set
	}
	for _, id := range pf.Processed {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

func (s *ProcessedIDStore) write(set map[string]struct{}) error {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return writeAtomic(s.path, processedFile{Processed: ids})
}
