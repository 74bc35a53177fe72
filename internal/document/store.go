// Package document loads preprocessed company-year filings. Each filing is
// one JSON file of named sections produced by the external preprocessing
// step; extraction quality is not validated here.
package document

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"resil/internal/logging"
	"resil/internal/types"
)

const cacheSize = 32

// Store resolves (ticker, year) keys to parsed documents, caching recently
// loaded filings.
type Store struct {
	dataDir string
	cache   *lru.Cache[types.DocumentKey, *types.Document]
	logger  logging.Logger
}

// NewStore builds a Store over a directory of preprocessed section JSON.
func NewStore(dataDir string, logger logging.Logger) (*Store, error) {
	cache, err := lru.New[types.DocumentKey, *types.Document](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create document cache: %w", err)
	}
	return &Store{
		dataDir: dataDir,
		cache:   cache,
		logger:  logging.OrNop(logger),
	}, nil
}

// metadata keys present in preprocessed files alongside the section text.
var metadataKeys = map[string]bool{
	"source":  true,
	"company": true,
	"ticker":  true,
	"year":    true,
	"cik":     true,
}

// Load returns the document for a (ticker, year) key. The newest file
// matching the filing naming patterns wins when several exist.
func (s *Store) Load(key types.DocumentKey) (*types.Document, error) {
	if doc, ok := s.cache.Get(key); ok {
		return doc, nil
	}

	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}

	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("parse document %s: %w", path, err)
	}

	doc := &types.Document{
		Ticker:   key.Ticker,
		Year:     key.Year,
		CIK:      fields["cik"],
		Sections: make(map[string]string),
	}
	for name, text := range fields {
		if !metadataKeys[name] && text != "" {
			doc.Sections[name] = text
		}
	}

	s.logger.Info("Loaded %s: %d sections from %s", key, len(doc.Sections), filepath.Base(path))
	s.cache.Add(key, doc)
	return doc, nil
}

// resolve finds the filing file for a key. Filings are named either with
// the full EDGAR accession shape (TICKER_10-K_*-YY-*.json) or the short
// TICKER_YEAR.json form.
func (s *Store) resolve(key types.DocumentKey) (string, error) {
	yearShort := fmt.Sprintf("%02d", key.Year%100)
	patterns := []string{
		fmt.Sprintf("%s_10-K_*-%s-*.json", key.Ticker, yearShort),
		fmt.Sprintf("%s_%d.json", key.Ticker, key.Year),
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(s.dataDir, pattern))
		if err != nil {
			return "", fmt.Errorf("glob %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches[len(matches)-1], nil
		}
	}

	return "", fmt.Errorf("no filing found for %s in %s", key, s.dataDir)
}
