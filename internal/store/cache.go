// Package store orchestrates internal/dataset ingestion against
// internal/runtime's in-memory model: it owns the process-wide
// runtime cache and build-status map, the single-writer build
// lifecycle, and the persistent on-disk snapshot that lets a second
// process start from a warm cache instead of re-ingesting the ZIP.
package store

import (
	"path/filepath"
	"sync"

	"github.com/dictd/dictd/internal/config"
	"github.com/dictd/dictd/internal/dataset"
	"github.com/dictd/dictd/internal/debug"
	"github.com/dictd/dictd/internal/errdef"
	"github.com/dictd/dictd/internal/metrics"
	"github.com/dictd/dictd/internal/runtime"
	"github.com/dictd/dictd/internal/runtime/bleveindex"
)

// Store holds the process-wide caches for one dictd process.
type Store struct {
	cfg     *config.Config
	metrics *metrics.Counters

	mu           sync.Mutex
	runtimeCache map[string]*runtime.Index
	buildStatus  map[string]runtime.BuildStatus
	bleveCache   map[string]*bleveindex.Index
}

// New creates an empty Store bound to cfg, counting against
// metrics.Default. cfg.Search is pushed into internal/runtime as the
// process-wide query tuning.
func New(cfg *config.Config) *Store {
	runtime.ConfigureSearch(runtime.SearchLimits{
		NormalizeCacheSize: cfg.Search.NormalizeCacheSize,
		PrefixDefaultLimit: cfg.Search.PrefixDefaultLimit,
		PrefixMaxLimit:     cfg.Search.PrefixMaxLimit,
		SearchMaxLimit:     cfg.Search.SearchMaxLimit,
		SnippetLength:      cfg.Search.SnippetLength,
	})
	return &Store{
		cfg:          cfg,
		metrics:      metrics.Default,
		runtimeCache: make(map[string]*runtime.Index),
		buildStatus:  make(map[string]runtime.BuildStatus),
		bleveCache:   make(map[string]*bleveindex.Index),
	}
}

// Metrics returns the counters this Store reports against.
func (s *Store) Metrics() *metrics.Counters {
	return s.metrics
}

// CacheKey canonicalizes a zip source path for use as a map key, so
// "./a.zip" and "/abs/a.zip" collide on the same cached build.
func CacheKey(zipPath string) string {
	abs, err := filepath.Abs(zipPath)
	if err != nil {
		return "zip:" + zipPath
	}
	return "zip:" + filepath.Clean(abs)
}

func (s *Store) cacheGet(key string) (*runtime.Index, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.runtimeCache[key]
	return idx, ok
}

func (s *Store) cachePut(key string, idx *runtime.Index) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runtimeCache[key] = idx
}

func (s *Store) setStatus(key string, status runtime.BuildStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildStatus[key] = status
}

func (s *Store) getStatus(key string) (runtime.BuildStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.buildStatus[key]
	return st, ok
}

func summaryFromIndex(zipPath string, idx *runtime.Index) runtime.MasterFeatureSummary {
	return runtime.MasterFeatureSummary{
		ZipPath:      zipPath,
		ContentCount: len(idx.Contents),
		IndexCount:   len(idx.Entries),
	}
}

// StartBuild starts (or reuses) a build for zipPath. If a completed
// build is already cached in-process, it marks the build done
// immediately with "Loaded from cache". If a build is already in
// flight, it returns without starting a second one (single-writer
// discipline). Otherwise it spawns a background worker and returns
// right away; callers poll GetBuildStatus for progress.
func (s *Store) StartBuild(zipPath string) (string, error) {
	key := CacheKey(zipPath)

	if idx, ok := s.cacheGet(key); ok {
		s.metrics.IncBuildCacheHit()
		summary := summaryFromIndex(zipPath, idx)
		s.setStatus(key, runtime.BuildStatus{
			Phase: "done", Current: summary.IndexCount, Total: summary.IndexCount,
			Message: "Loaded from cache", Done: true, Success: true, Summary: &summary,
		})
		return key, nil
	}

	if st, ok := s.getStatus(key); ok && !st.Done {
		return key, nil
	}

	s.metrics.IncBuildCacheMiss()
	s.setStatus(key, runtime.BuildStatus{Phase: "start", Done: false, Message: "Starting build"})

	go s.runBuild(zipPath, key)

	return key, nil
}

func (s *Store) runBuild(zipPath, key string) {
	s.metrics.IncBuild()
	debug.LogBuild("starting build for %s (key %s)", zipPath, key)
	progress := func(p runtime.BuildProgress) {
		s.setStatus(key, runtime.BuildStatus{
			Phase: p.Phase, Current: p.Current, Total: p.Total, Message: p.Message, Done: false,
		})
	}

	idx, err := dataset.ParseRuntimeFromZipWithProgress(zipPath, s.cfg.Dataset.MaxWorkers, s.cfg.Dataset.ReservedStems, progress)
	if err != nil {
		debug.CatastrophicError("build failed for %s: %v", zipPath, err)
		s.setStatus(key, runtime.BuildStatus{
			Phase: "error", Current: 0, Total: 1, Done: true, Success: false,
			Error: err.Error(), Message: "Build failed",
		})
		return
	}

	if serr := saveSnapshot(s.cfg, zipPath, idx); serr != nil {
		debug.CatastrophicError("failed to persist build for %s: %v", zipPath, serr)
		s.setStatus(key, runtime.BuildStatus{
			Phase: "error", Current: 0, Total: 1, Done: true, Success: false,
			Error: serr.Error(), Message: "Failed to persist build",
		})
		return
	}

	s.cachePut(key, idx)
	summary := summaryFromIndex(zipPath, idx)
	debug.LogBuild("build complete for %s: %d content items, %d entries", zipPath, summary.ContentCount, summary.IndexCount)
	s.setStatus(key, runtime.BuildStatus{
		Phase: "done", Current: summary.IndexCount, Total: summary.IndexCount,
		Message: "Build complete", Done: true, Success: true, Summary: &summary,
	})
}

// GetBuildStatus returns the latest known status for zipPath, or a
// synthetic idle status if no build has ever been started.
func (s *Store) GetBuildStatus(zipPath string) runtime.BuildStatus {
	key := CacheKey(zipPath)
	if st, ok := s.getStatus(key); ok {
		return st
	}
	return runtime.BuildStatus{Phase: "idle", Done: true, Success: false, Message: "No build started"}
}

// GetRuntime returns the cached runtime.Index for zipPath, building
// (and caching) it synchronously if necessary. Used by callers that
// need the result immediately rather than polling build status.
func (s *Store) GetRuntime(zipPath string) (*runtime.Index, error) {
	key := CacheKey(zipPath)
	if idx, ok := s.cacheGet(key); ok {
		return idx, nil
	}
	if persisted, err := loadSnapshot(s.cfg, zipPath); err == nil && persisted != nil {
		s.cachePut(key, persisted)
		return persisted, nil
	}

	idx, err := dataset.ParseRuntimeFromZipWithProgress(zipPath, s.cfg.Dataset.MaxWorkers, s.cfg.Dataset.ReservedStems, nil)
	if err != nil {
		return nil, err
	}
	s.cachePut(key, idx)
	_ = saveSnapshot(s.cfg, zipPath, idx)
	return idx, nil
}

// GetMasterContents returns the sitemap content tree for zipPath.
func (s *Store) GetMasterContents(zipPath string) ([]runtime.ContentItem, error) {
	idx, err := s.GetRuntime(zipPath)
	if err != nil {
		return nil, err
	}
	return idx.Contents, nil
}

// GetEntryDetail returns the hydrated EntryDetail with the given id,
// fetching its definition text/HTML from the dataset ZIP on first
// access. The shared runtime.Index's entries are not written after the
// build and are read concurrently by search and listing, so hydration
// happens on a clone of the matched entry; the shared Entries slice is
// never mutated.
func (s *Store) GetEntryDetail(zipPath string, id int) (runtime.EntryDetail, error) {
	idx, err := s.GetRuntime(zipPath)
	if err != nil {
		return runtime.EntryDetail{}, err
	}
	for _, e := range idx.Entries {
		if e.ID != id {
			continue
		}
		if e.DefinitionText == "" {
			src := dataset.ZipCHMSource{ZipPath: zipPath}
			if herr := dataset.HydrateEntryDetail(src, &e); herr != nil {
				return runtime.EntryDetail{}, herr
			}
		}
		return e, nil
	}
	return runtime.EntryDetail{}, errdef.NewResourceError("GetEntryDetail", zipPath, nil)
}

// GetContentPage returns the decoded content page at local within
// sourcePath (defaulting to "master.chm"), serving it from the
// runtime's content-page cache when previously resolved.
func (s *Store) GetContentPage(zipPath, sourcePath, local string) (runtime.ContentPage, error) {
	if sourcePath == "" {
		sourcePath = "master.chm"
	}
	idx, err := s.GetRuntime(zipPath)
	if err != nil {
		return runtime.ContentPage{}, err
	}
	if sourcePath == "master.chm" {
		if page, ok := idx.ContentPages[local]; ok {
			return page, nil
		}
	}
	page, err := dataset.ReadContentPageFromZip(zipPath, sourcePath, local)
	if err != nil {
		return runtime.ContentPage{}, err
	}
	if sourcePath == "master.chm" {
		idx.ContentPages[local] = page
	}
	return page, nil
}
