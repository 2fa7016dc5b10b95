package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dictd/dictd/internal/config"
	"github.com/dictd/dictd/internal/runtime"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Cache.Root = t.TempDir()
	return cfg
}

func fakeZip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a real zip, only stat'd"), 0o644))
	return path
}

func TestCacheKeyNormalizesRelativeAndAbsolute(t *testing.T) {
	abs, err := filepath.Abs("a.zip")
	require.NoError(t, err)
	require.Equal(t, CacheKey(abs), CacheKey("a.zip"))
}

func TestSanitizeName(t *testing.T) {
	require.Equal(t, "a_b_c", sanitizeName("a b/c"))
	require.Equal(t, "dataset", sanitizeName(""))
}

func TestFingerprintStableForUnchangedFile(t *testing.T) {
	path := fakeZip(t)
	fp1, err := fingerprint(path)
	require.NoError(t, err)
	fp2, err := fingerprint(path)
	require.NoError(t, err)
	require.Equal(t, fp1, fp2)
	require.Len(t, fp1, 16)
}

func TestWriteAtomicCreatesFinalFileNotTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	require.NoError(t, writeAtomic(path, []byte("hello")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestSaveAndLoadSnapshotRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	zipPath := fakeZip(t)

	idx := &runtime.Index{
		Contents: []runtime.ContentItem{{Title: "목차", Local: "master"}},
		Entries: []runtime.EntryDetail{
			{ID: 1, Headword: "Apfel", Aliases: []string{"Apfel"}, SourcePath: "merge01.chm", DefinitionText: "fruit"},
		},
	}

	require.NoError(t, saveSnapshot(cfg, zipPath, idx))

	loaded, err := loadSnapshot(cfg, zipPath)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, idx.Contents, loaded.Contents)
	require.Equal(t, idx.Entries, loaded.Entries)
	require.Len(t, loaded.EntryKeys, 1)
}

func TestLoadSnapshotMissingReturnsNilNil(t *testing.T) {
	cfg := testConfig(t)
	zipPath := fakeZip(t)

	loaded, err := loadSnapshot(cfg, zipPath)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestStartBuildThenStatusReflectsFailureForMissingDataset(t *testing.T) {
	s := New(testConfig(t))
	zipPath := filepath.Join(t.TempDir(), "missing.zip")

	key, err := s.StartBuild(zipPath)
	require.NoError(t, err)
	require.Equal(t, CacheKey(zipPath), key)

	require.Eventually(t, func() bool {
		st := s.GetBuildStatus(zipPath)
		return st.Done
	}, 2*time.Second, 10*time.Millisecond)

	st := s.GetBuildStatus(zipPath)
	require.False(t, st.Success)
	require.NotEmpty(t, st.Error)
}

func TestGetBuildStatusIdleWhenNeverStarted(t *testing.T) {
	s := New(testConfig(t))
	st := s.GetBuildStatus("/nowhere.zip")
	require.Equal(t, "idle", st.Phase)
	require.True(t, st.Done)
	require.False(t, st.Success)
}

func TestGetEntryDetailReturnsAlreadyHydratedEntryWithoutMutatingIndex(t *testing.T) {
	s := New(testConfig(t))
	zipPath := fakeZip(t)
	key := CacheKey(zipPath)

	idx := &runtime.Index{
		Entries: []runtime.EntryDetail{
			{ID: 1, Headword: "Apfel", Aliases: []string{"Apfel"}, SourcePath: "merge01.chm", DefinitionText: "fruit"},
		},
		EntryKeys: []runtime.EntrySearchKey{{Headword: "apfel", HeadwordLoose: "apfel"}},
	}
	s.cachePut(key, idx)

	entry, err := s.GetEntryDetail(zipPath, 1)
	require.NoError(t, err)
	require.Equal(t, "Apfel", entry.Headword)
	require.Equal(t, "fruit", entry.DefinitionText)

	require.Equal(t, "fruit", idx.Entries[0].DefinitionText)
}

func TestGetEntryDetailUnknownIDReturnsError(t *testing.T) {
	s := New(testConfig(t))
	zipPath := fakeZip(t)
	key := CacheKey(zipPath)

	s.cachePut(key, &runtime.Index{
		Entries: []runtime.EntryDetail{{ID: 1, Headword: "Apfel", SourcePath: "merge01.chm", DefinitionText: "fruit"}},
	})

	_, err := s.GetEntryDetail(zipPath, 99)
	require.Error(t, err)
}

func TestLatestManagedZipEmptyWhenNoneImported(t *testing.T) {
	cfg := testConfig(t)
	latest, err := LatestManagedZip(cfg)
	require.NoError(t, err)
	require.Empty(t, latest)
}

func TestEnsureManagedZipCopyIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	src := fakeZip(t)

	dest1, err := EnsureManagedZipCopy(cfg, src)
	require.NoError(t, err)
	require.FileExists(t, dest1)

	dest2, err := EnsureManagedZipCopy(cfg, src)
	require.NoError(t, err)
	require.Equal(t, dest1, dest2)

	latest, err := LatestManagedZip(cfg)
	require.NoError(t, err)
	require.Equal(t, dest1, latest)
}

func TestEnsureManagedZipCopyIsNoOpForAlreadyManagedSource(t *testing.T) {
	cfg := testConfig(t)
	src := fakeZip(t)

	dest, err := EnsureManagedZipCopy(cfg, src)
	require.NoError(t, err)

	again, err := EnsureManagedZipCopy(cfg, dest)
	require.NoError(t, err)
	require.Equal(t, dest, again)
}
