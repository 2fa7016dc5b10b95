// Package metrics provides lightweight atomic counters for cache
// hit/miss, build, and search activity, surfaced by the CLI's
// `metrics` subcommand.
package metrics

import "sync/atomic"

// Counters is a process-wide set of named atomic counters. The zero
// value is ready to use.
type Counters struct {
	BuildCount       int64
	BuildCacheHits   int64
	BuildCacheMisses int64
	SearchQueries    int64
	PrefixQueries    int64
	NormalizeHits    int64
	NormalizeMisses  int64
	BlockCacheHits   int64
	BlockCacheMisses int64
}

// Default is the counters instance used by the rest of the module
// unless a caller constructs its own (tests typically do, to avoid
// cross-test interference).
var Default = &Counters{}

func (c *Counters) IncBuild()             { atomic.AddInt64(&c.BuildCount, 1) }
func (c *Counters) IncBuildCacheHit()      { atomic.AddInt64(&c.BuildCacheHits, 1) }
func (c *Counters) IncBuildCacheMiss()     { atomic.AddInt64(&c.BuildCacheMisses, 1) }
func (c *Counters) IncSearchQuery()        { atomic.AddInt64(&c.SearchQueries, 1) }
func (c *Counters) IncPrefixQuery()        { atomic.AddInt64(&c.PrefixQueries, 1) }
func (c *Counters) IncNormalizeHit()       { atomic.AddInt64(&c.NormalizeHits, 1) }
func (c *Counters) IncNormalizeMiss()      { atomic.AddInt64(&c.NormalizeMisses, 1) }
func (c *Counters) IncBlockCacheHit()      { atomic.AddInt64(&c.BlockCacheHits, 1) }
func (c *Counters) IncBlockCacheMiss()     { atomic.AddInt64(&c.BlockCacheMisses, 1) }

// Snapshot is a point-in-time read of every counter, safe to
// serialize.
type Snapshot struct {
	BuildCount       int64 `json:"buildCount"`
	BuildCacheHits   int64 `json:"buildCacheHits"`
	BuildCacheMisses int64 `json:"buildCacheMisses"`
	SearchQueries    int64 `json:"searchQueries"`
	PrefixQueries    int64 `json:"prefixQueries"`
	NormalizeHits    int64 `json:"normalizeHits"`
	NormalizeMisses  int64 `json:"normalizeMisses"`
	BlockCacheHits   int64 `json:"blockCacheHits"`
	BlockCacheMisses int64 `json:"blockCacheMisses"`
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		BuildCount:       atomic.LoadInt64(&c.BuildCount),
		BuildCacheHits:   atomic.LoadInt64(&c.BuildCacheHits),
		BuildCacheMisses: atomic.LoadInt64(&c.BuildCacheMisses),
		SearchQueries:    atomic.LoadInt64(&c.SearchQueries),
		PrefixQueries:    atomic.LoadInt64(&c.PrefixQueries),
		NormalizeHits:    atomic.LoadInt64(&c.NormalizeHits),
		NormalizeMisses:  atomic.LoadInt64(&c.NormalizeMisses),
		BlockCacheHits:   atomic.LoadInt64(&c.BlockCacheHits),
		BlockCacheMisses: atomic.LoadInt64(&c.BlockCacheMisses),
	}
}
