package config

import "fmt"

// Validate checks invariants on a loaded configuration, matching the
// teacher's approach of validating after merge rather than per-field
// during parse.
func (c *Config) Validate() error {
	if c.Search.PrefixMaxLimit <= 0 {
		return fmt.Errorf("search.prefix_max_limit must be positive, got %d", c.Search.PrefixMaxLimit)
	}
	if c.Search.SearchMaxLimit <= 0 {
		return fmt.Errorf("search.search_max_limit must be positive, got %d", c.Search.SearchMaxLimit)
	}
	if c.Search.NormalizeCacheSize <= 0 {
		return fmt.Errorf("search.normalize_cache_size must be positive, got %d", c.Search.NormalizeCacheSize)
	}
	if c.Dataset.MaxWorkers < 0 {
		return fmt.Errorf("dataset.max_workers must be >= 0, got %d", c.Dataset.MaxWorkers)
	}
	if c.Dataset.ProgressMs < 0 {
		return fmt.Errorf("dataset.progress_ms must be >= 0, got %d", c.Dataset.ProgressMs)
	}
	if len(c.Dataset.ReservedStems) == 0 {
		return fmt.Errorf("dataset.reserved_stems must not be empty")
	}
	return nil
}
