// Package config loads and validates dictd's runtime configuration
// from an optional .dictd.kdl file, following the same defaults-first,
// parse-on-top pattern the teacher project uses for its own KDL
// config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Config is dictd's complete runtime configuration.
type Config struct {
	Version int
	Cache   Cache
	Dataset Dataset
	Search  Search
	MCP     MCP
}

// Cache controls where persisted runtime snapshots and managed ZIP
// copies live.
type Cache struct {
	Root string // platform cache root override; "" means use os.UserCacheDir
}

// Dataset controls ingestion behavior.
type Dataset struct {
	MaxWorkers    int      // 0 = min(NumCPU, chmCount)
	ReservedStems []string // HHK-less fallback reserved filename stems
	ProgressMs    int      // progress throttle interval; parsed and validated, not read by ingestion
}

// Search controls query-engine limits.
type Search struct {
	NormalizeCacheSize int // bounded LRU size for strict/loose normalization memo
	PrefixDefaultLimit int // limit used when a prefix is given but limit is omitted; 0 keeps runtime's built-in default
	PrefixMaxLimit     int
	SearchMaxLimit     int
	SnippetLength      int
	EnableBleveIndex   bool
	EnableFuzzySuggest bool
}

// MCP controls the stdio command-surface server.
type MCP struct {
	ServerName string
}

// DefaultReservedStems are the filename stems excluded from HHK-less
// headword harvesting (spec §4.3); dataset-specific, so callers may
// override via config (spec §9 Open Question (b)).
var DefaultReservedStems = []string{"master", "index", "version_information", "dictionary", "a"}

// Default returns the configuration used when no .dictd.kdl file is
// present or a field is left unset in one.
func Default() *Config {
	return &Config{
		Version: 1,
		Cache:   Cache{Root: ""},
		Dataset: Dataset{
			MaxWorkers:    0,
			ReservedStems: append([]string(nil), DefaultReservedStems...),
			ProgressMs:    120,
		},
		Search: Search{
			NormalizeCacheSize: 65536,
			PrefixDefaultLimit: 0,
			PrefixMaxLimit:     5000,
			SearchMaxLimit:     200,
			SnippetLength:      180,
			EnableBleveIndex:   true,
			EnableFuzzySuggest: true,
		},
		MCP: MCP{ServerName: "dictd"},
	}
}

// Load reads .dictd.kdl from projectRoot if present, overlaying it on
// Default(). A missing file is not an error.
func Load(projectRoot string) (*Config, error) {
	cfg := Default()
	kdlPath := filepath.Join(projectRoot, ".dictd.kdl")
	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return cfg, nil
	}
	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", kdlPath, err)
	}
	if err := applyKDL(cfg, string(content)); err != nil {
		return nil, fmt.Errorf("parse %s: %w", kdlPath, err)
	}
	return cfg, nil
}

// ResolvedWorkers returns the effective ingestion worker cap for a
// dataset containing chmCount CHM volumes.
func (c *Config) ResolvedWorkers(chmCount int) int {
	if c.Dataset.MaxWorkers > 0 {
		if c.Dataset.MaxWorkers < chmCount {
			return c.Dataset.MaxWorkers
		}
		return chmCount
	}
	n := runtime.NumCPU()
	if chmCount < n {
		return max(chmCount, 1)
	}
	return n
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// CacheRoot resolves the configured cache root, falling back to the
// OS user cache directory joined with "dictd".
func (c *Config) CacheRoot() (string, error) {
	if c.Cache.Root != "" {
		return c.Cache.Root, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "dictd"), nil
}
