package dataset

import (
	"archive/zip"
	"io"
	goruntime "runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/dictd/dictd/internal/chm"
	"github.com/dictd/dictd/internal/debug"
	"github.com/dictd/dictd/internal/dictext"
	"github.com/dictd/dictd/internal/errdef"
	"github.com/dictd/dictd/internal/runtime"
)

// ProgressFunc receives progress updates while a dataset ZIP is being
// ingested: one update per parsed CHM member, not throttled.
type ProgressFunc func(runtime.BuildProgress)

func isMasterCHM(lowerBase string) bool {
	ok, _ := doublestar.Match("*master.chm", lowerBase)
	return ok
}

func isMergeCHM(lowerBase string) bool {
	ok, _ := doublestar.Match("merge*.chm", lowerBase)
	return ok
}

// ParseRuntimeFromZipWithProgress is the master ingestion entry point:
// it opens zipPath, loads master.hhc from the *master.chm member to
// build the content tree (falling back to a single synthetic "목차"
// root if that yields nothing), extracts index entries from every
// merge*.chm member (up to maxWorkers of them concurrently; 0 means
// one worker per available CPU), then dedups and assigns dense
// 1-based IDs before building the queryable runtime.Index.
// reservedStems configures the HHK-less fallback's excluded filename
// stems (internal/config.Config.Dataset.ReservedStems); nil falls back
// to the package default.
func ParseRuntimeFromZipWithProgress(zipPath string, maxWorkers int, reservedStems []string, progress ProgressFunc) (*runtime.Index, error) {
	reserved := ReservedStemSet(reservedStems)
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, errdef.NewResourceError("ParseRuntimeFromZipWithProgress", zipPath, err)
	}
	defer zr.Close()

	chmFiles := make([]*zip.File, 0)
	for _, f := range zr.File {
		if ok, _ := doublestar.Match("*.chm", strings.ToLower(basename(f.Name))); ok {
			chmFiles = append(chmFiles, f)
		}
	}
	total := len(chmFiles)

	if maxWorkers <= 0 {
		maxWorkers = goruntime.NumCPU()
	}
	debug.LogIngest("opened %s: %d chm members, %d workers", zipPath, total, maxWorkers)

	var mu sync.Mutex
	var contents []runtime.ContentItem
	var entries []runtime.EntryDetail
	var done int32

	g := new(errgroup.Group)
	g.SetLimit(maxWorkers)

	for _, f := range chmFiles {
		f := f
		g.Go(func() error {
			name := dictext.PathStem(f.Name) + ".chm"
			lowerBase := strings.ToLower(basename(f.Name))

			data, readErr := readZipFile(f)
			if readErr == nil {
				switch {
				case isMasterCHM(lowerBase):
					items := loadMasterContents(data)
					mu.Lock()
					contents = append(contents, items...)
					mu.Unlock()
				case isMergeCHM(lowerBase):
					if ents, err := ExtractIndexEntriesFromCHMBytes(lowerBase, data, reserved); err == nil {
						mu.Lock()
						entries = append(entries, ents...)
						mu.Unlock()
					}
				}
			}

			current := int(atomic.AddInt32(&done, 1))
			debug.Progress("parse", current, total, name)
			if progress != nil {
				progress(runtime.BuildProgress{
					Phase:   "parse",
					Current: current,
					Total:   total,
					Message: "Parsing " + name,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(contents) == 0 {
		contents = []runtime.ContentItem{{Title: "목차", Local: "master"}}
	}

	debug.LogIngest("%s: %d content items, %d raw entries before dedup", zipPath, len(contents), len(entries))
	entries = dedupAndAssignIDs(entries)

	idx := &runtime.Index{
		Contents:     contents,
		Entries:      entries,
		EntryKeys:    runtime.BuildEntrySearchKeys(entries),
		ContentPages: make(map[string]runtime.ContentPage),
	}
	return idx, nil
}

func loadMasterContents(masterCHMBytes []byte) []runtime.ContentItem {
	arc, err := chm.Open(masterCHMBytes)
	if err != nil {
		return nil
	}
	for _, candidate := range []string{"master.hhc", "/master.hhc"} {
		if raw, err := arc.ReadObject(candidate); err == nil {
			text := dictext.DecodeEUCKR(raw)
			if items := ParseMasterHHCText(text); len(items) > 0 {
				return items
			}
		}
	}
	return nil
}

func dedupAndAssignIDs(entries []runtime.EntryDetail) []runtime.EntryDetail {
	sort.SliceStable(entries, func(i, j int) bool {
		ki := runtime.NormalizeSearchKey(entries[i].Headword)
		kj := runtime.NormalizeSearchKey(entries[j].Headword)
		if ki != kj {
			return ki < kj
		}
		if entries[i].SourcePath != entries[j].SourcePath {
			return entries[i].SourcePath < entries[j].SourcePath
		}
		return entries[i].TargetLocal < entries[j].TargetLocal
	})

	out := entries[:0:0]
	for i, e := range entries {
		if i > 0 {
			p := out[len(out)-1]
			if runtime.NormalizeSearchKey(p.Headword) == runtime.NormalizeSearchKey(e.Headword) &&
				p.SourcePath == e.SourcePath && p.TargetLocal == e.TargetLocal {
				continue
			}
		}
		out = append(out, e)
	}
	for i := range out {
		out[i].ID = i + 1
	}
	return out
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func basename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// ReadNamedCHMFromZip scans zipPath's entries for one whose lowercased
// basename matches chmName and returns its raw bytes.
func ReadNamedCHMFromZip(zipPath, chmName string) ([]byte, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, errdef.NewResourceError("ReadNamedCHMFromZip", zipPath, err)
	}
	defer zr.Close()

	want := strings.ToLower(chmName)
	for _, f := range zr.File {
		if strings.ToLower(basename(f.Name)) == want {
			return readZipFile(f)
		}
	}
	return nil, errdef.NewResourceError("ReadNamedCHMFromZip", chmName, nil)
}
