package store

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"
	"github.com/klauspost/compress/zstd"

	"github.com/dictd/dictd/internal/config"
	"github.com/dictd/dictd/internal/errdef"
	"github.com/dictd/dictd/internal/runtime"
)

const (
	runtimeCacheDirName = "runtime-cache"
	cacheVersion        = 1
	manifestFile        = "manifest.gob"
	contentsFile        = "contents.gob.zst"
	entriesFile         = "entries.gob.zst"
	zstdLevel           = zstd.SpeedDefault
)

// manifest records the version and record counts a persisted snapshot
// was written with, so a loader can detect a stale or corrupt cache
// without fully decoding the payload files.
type manifest struct {
	Version       int
	ContentsCount int
	EntriesCount  int
}

// persisted is the subset of runtime.Index that gets written to disk;
// ContentPages and EntryKeys are cheap to recompute and are rebuilt
// after loading.
type persisted struct {
	Contents []runtime.ContentItem
	Entries  []runtime.EntryDetail
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "dataset"
	}
	return b.String()
}

// fingerprint derives a 16-hex-digit content fingerprint from a zip
// file's canonical path, size, and modification time, so a changed
// source file invalidates its persisted snapshot.
func fingerprint(zipPath string) (string, error) {
	abs, err := filepath.Abs(zipPath)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	h := xxhash.New()
	fmt.Fprintf(h, "%s|%d|%d", filepath.Clean(abs), info.Size(), info.ModTime().UnixNano())
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func runtimeCacheSourceDir(cfg *config.Config, zipPath string) (string, error) {
	root, err := cfg.CacheRoot()
	if err != nil {
		return "", err
	}
	fp, err := fingerprint(zipPath)
	if err != nil {
		return "", err
	}
	stem := sanitizeName(strings.TrimSuffix(filepath.Base(zipPath), filepath.Ext(zipPath)))
	return filepath.Join(root, runtimeCacheDirName, stem+"-"+fp), nil
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevel))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// writeAtomic writes data to a ".tmp" sibling of path and renames it
// into place, so a reader never observes a partially written file.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func lockPath(dir string) string { return filepath.Join(dir, ".lock") }

// saveSnapshot persists idx's contents and entries to the runtime
// cache directory for zipPath, guarded by a file lock so two
// processes racing to finish the same build don't interleave writes.
// The manifest is written last so its presence implies both data
// files are complete and valid.
func saveSnapshot(cfg *config.Config, zipPath string, idx *runtime.Index) error {
	dir, err := runtimeCacheSourceDir(cfg, zipPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errdef.NewCacheError("saveSnapshot", zipPath, err)
	}

	lock := flock.New(lockPath(dir))
	if err := lock.Lock(); err != nil {
		return errdef.NewCacheError("saveSnapshot", zipPath, err)
	}
	defer lock.Unlock()

	contentsRaw, err := encodeGob(idx.Contents)
	if err != nil {
		return errdef.NewCacheError("saveSnapshot", zipPath, err)
	}
	entriesRaw, err := encodeGob(idx.Entries)
	if err != nil {
		return errdef.NewCacheError("saveSnapshot", zipPath, err)
	}
	contentsCompressed, err := compressZstd(contentsRaw)
	if err != nil {
		return errdef.NewCacheError("saveSnapshot", zipPath, err)
	}
	entriesCompressed, err := compressZstd(entriesRaw)
	if err != nil {
		return errdef.NewCacheError("saveSnapshot", zipPath, err)
	}

	if err := writeAtomic(filepath.Join(dir, contentsFile), contentsCompressed); err != nil {
		return errdef.NewCacheError("saveSnapshot", zipPath, err)
	}
	if err := writeAtomic(filepath.Join(dir, entriesFile), entriesCompressed); err != nil {
		return errdef.NewCacheError("saveSnapshot", zipPath, err)
	}

	m := manifest{Version: cacheVersion, ContentsCount: len(idx.Contents), EntriesCount: len(idx.Entries)}
	manifestRaw, err := encodeGob(m)
	if err != nil {
		return errdef.NewCacheError("saveSnapshot", zipPath, err)
	}
	if err := writeAtomic(filepath.Join(dir, manifestFile), manifestRaw); err != nil {
		return errdef.NewCacheError("saveSnapshot", zipPath, err)
	}
	return nil
}

// loadSnapshot loads a previously saved runtime.Index for zipPath.
// It returns (nil, nil) on any cache miss or corruption — callers
// treat a missing/invalid snapshot as "build from scratch" rather than
// a hard failure — and removes the corrupted directory so a bad cache
// never lingers to fail again on the next attempt.
func loadSnapshot(cfg *config.Config, zipPath string) (*runtime.Index, error) {
	dir, err := runtimeCacheSourceDir(cfg, zipPath)
	if err != nil {
		return nil, nil
	}

	manifestRaw, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, nil
	}
	var m manifest
	if err := decodeGob(manifestRaw, &m); err != nil || m.Version != cacheVersion {
		os.RemoveAll(dir)
		return nil, nil
	}

	contentsCompressed, err := os.ReadFile(filepath.Join(dir, contentsFile))
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil
	}
	entriesCompressed, err := os.ReadFile(filepath.Join(dir, entriesFile))
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil
	}

	contentsRaw, err := decompressZstd(contentsCompressed)
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil
	}
	entriesRaw, err := decompressZstd(entriesCompressed)
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil
	}

	var contents []runtime.ContentItem
	var entries []runtime.EntryDetail
	if err := decodeGob(contentsRaw, &contents); err != nil {
		os.RemoveAll(dir)
		return nil, nil
	}
	if err := decodeGob(entriesRaw, &entries); err != nil {
		os.RemoveAll(dir)
		return nil, nil
	}
	if len(contents) != m.ContentsCount || len(entries) != m.EntriesCount {
		os.RemoveAll(dir)
		return nil, nil
	}

	return &runtime.Index{
		Contents:     contents,
		Entries:      entries,
		EntryKeys:    runtime.BuildEntrySearchKeys(entries),
		ContentPages: make(map[string]runtime.ContentPage),
	}, nil
}

// ManagedZipDir returns the directory dictd copies managed dataset
// ZIPs into, creating it if necessary.
func ManagedZipDir(cfg *config.Config) (string, error) {
	root, err := cfg.CacheRoot()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, "zips")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// EnsureManagedZipCopy copies sourceZip into the managed ZIP directory
// under a fingerprinted name, returning the existing copy's path if
// one is already present, and is a no-op if sourceZip is already
// inside the managed directory.
func EnsureManagedZipCopy(cfg *config.Config, sourceZip string) (string, error) {
	managedDir, err := ManagedZipDir(cfg)
	if err != nil {
		return "", err
	}
	absSource, err := filepath.Abs(sourceZip)
	if err != nil {
		return "", err
	}
	if filepath.Dir(absSource) == managedDir {
		return absSource, nil
	}

	fp, err := fingerprint(sourceZip)
	if err != nil {
		return "", err
	}
	stem := sanitizeName(strings.TrimSuffix(filepath.Base(sourceZip), filepath.Ext(sourceZip)))
	dest := filepath.Join(managedDir, stem+"-"+fp+".zip")
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	in, err := os.Open(absSource)
	if err != nil {
		return "", err
	}
	defer in.Close()

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// LatestManagedZip returns the most recently modified .zip file in the
// managed ZIP directory, or "" if none exists.
func LatestManagedZip(cfg *config.Config) (string, error) {
	dir, err := ManagedZipDir(cfg)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var latest string
	var latestMod int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().UnixNano() > latestMod {
			latestMod = info.ModTime().UnixNano()
			latest = filepath.Join(dir, e.Name())
		}
	}
	return latest, nil
}
