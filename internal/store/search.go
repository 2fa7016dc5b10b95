package store

import (
	"github.com/hbollon/go-edlib"

	"github.com/dictd/dictd/internal/debug"
	"github.com/dictd/dictd/internal/runtime"
	"github.com/dictd/dictd/internal/runtime/bleveindex"
)

func (s *Store) bleveFor(key string, idx *runtime.Index) runtime.BleveSearcher {
	if !s.cfg.Search.EnableBleveIndex {
		return nil
	}
	s.mu.Lock()
	if bi, ok := s.bleveCache[key]; ok {
		s.mu.Unlock()
		return bi
	}
	s.mu.Unlock()

	bi, err := bleveindex.Build(idx.Entries)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	s.bleveCache[key] = bi
	s.mu.Unlock()
	return bi
}

// GetIndexEntries lists entries whose headword starts with prefix, up
// to limit.
func (s *Store) GetIndexEntries(zipPath, prefix string, limit int) ([]runtime.DictionaryIndexEntry, error) {
	s.metrics.IncPrefixQuery()
	idx, err := s.GetRuntime(zipPath)
	if err != nil {
		return nil, err
	}
	return runtime.GetIndexEntries(idx, prefix, limit), nil
}

// SearchEntries runs a full-text search against zipPath's runtime,
// trying the bleve-backed inverted index first (when enabled) and
// falling back to the linear scorer.
func (s *Store) SearchEntries(zipPath, query string, limit int) ([]runtime.SearchHit, error) {
	s.metrics.IncSearchQuery()
	debug.LogSearch("query %q against %s (limit %d)", query, zipPath, limit)
	idx, err := s.GetRuntime(zipPath)
	if err != nil {
		return nil, err
	}
	key := CacheKey(zipPath)
	return runtime.SearchEntries(idx, s.bleveFor(key, idx), query, limit), nil
}

// SuggestHeadwords returns up to limit headwords similar to query by
// edit distance, used by the MCP search_entries tool to populate "did
// you mean" suggestions when a search comes back empty.
func (s *Store) SuggestHeadwords(zipPath, query string, limit int) ([]string, error) {
	idx, err := s.GetRuntime(zipPath)
	if err != nil {
		return nil, err
	}
	if !s.cfg.Search.EnableFuzzySuggest || query == "" {
		return nil, nil
	}

	words := make([]string, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		words = append(words, e.Headword)
	}
	if limit <= 0 {
		limit = 5
	}
	results, err := edlib.FuzzySearchThreshold(query, words, 0.5, edlib.Levenshtein)
	if err != nil {
		return nil, nil
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
