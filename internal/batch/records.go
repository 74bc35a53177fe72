package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"resil/internal/types"
)

// RecordStore persists one scoring record per document as
// <TICKER>_<year>_score.json, the artifact consumed by the storage and
// visualization collaborators.
type RecordStore struct {
	dir string
}

// NewRecordStore builds a store over the scores directory.
func NewRecordStore(dir string) *RecordStore {
	return &RecordStore{dir: dir}
}

func (s *RecordStore) path(key types.DocumentKey) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%d_score.json", key.Ticker, key.Year))
}

// Save writes the record atomically (temp file + rename).
func (s *RecordStore) Save(record *types.ScoringRecord) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create scores dir: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scoring record: %w", err)
	}

	final := s.path(record.Key())
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write scoring record: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("finalize scoring record: %w", err)
	}
	return nil
}

// Load reads one scoring record.
func (s *RecordStore) Load(key types.DocumentKey) (*types.ScoringRecord, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("read scoring record %s: %w", key, err)
	}
	var record types.ScoringRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parse scoring record %s: %w", key, err)
	}
	return &record, nil
}

// List returns the keys of all persisted records, sorted.
func (s *RecordStore) List() ([]types.DocumentKey, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*_score.json"))
	if err != nil {
		return nil, fmt.Errorf("list scoring records: %w", err)
	}

	var keys []types.DocumentKey
	for _, match := range matches {
		name := strings.TrimSuffix(filepath.Base(match), "_score.json")
		idx := strings.LastIndexByte(name, '_')
		if idx <= 0 {
			continue
		}
		var year int
		if _, err := fmt.Sscanf(name[idx+1:], "%d", &year); err != nil {
			continue
		}
		keys = append(keys, types.DocumentKey{Ticker: name[:idx], Year: year})
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Ticker != keys[j].Ticker {
			return keys[i].Ticker < keys[j].Ticker
		}
		return keys[i].Year < keys[j].Year
	})
	return keys, nil
}
