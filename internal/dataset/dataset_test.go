package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dictd/dictd/internal/runtime"
)

func TestParseMasterHHCTextExtractsNameAndLocal(t *testing.T) {
	text := `<html><body>
<object type="text/sitemap">
  <param name="Name" value="Apfel">
  <param name="Local" value="merge01/apfel.htm">
</object>
<object type="text/sitemap">
  <param name="Name" value="Birne">
  <param name="Local" value="merge01/birne.htm">
</object>
</body></html>`

	items := ParseMasterHHCText(text)
	require.Len(t, items, 2)
	require.Equal(t, "Apfel", items[0].Title)
	require.Equal(t, "merge01/apfel.htm", items[0].Local)
	require.Equal(t, "Birne", items[1].Title)
}

func TestParseMasterHHCTextIgnoresNonSitemapObjects(t *testing.T) {
	text := `<object type="application/x-oleobject"><param name="Name" value="X"></object>`
	require.Empty(t, ParseMasterHHCText(text))
}

func TestParseHHKEntriesFromTextSeedsAliasFromTargetStem(t *testing.T) {
	text := `<object type="text/sitemap">
  <param name="Name" value="Apfel">
  <param name="Local" value="abriss.htm">
</object>`
	entries := ParseHHKEntriesFromText(text, "merge01.chm")
	require.Len(t, entries, 1)
	require.Equal(t, "Apfel", entries[0].Headword)
	require.Equal(t, "merge01.chm", entries[0].SourcePath)
	require.Equal(t, "abriss.htm", entries[0].TargetLocal)
	require.Contains(t, entries[0].Aliases, "Apfel")
	require.Contains(t, entries[0].Aliases, "abriss")
}

func TestParseHHKEntriesFromTextHonorsSourceOverride(t *testing.T) {
	text := `<object type="text/sitemap">
  <param name="Name" value="Apfel">
  <param name="Local" value="other.chm::/x.htm">
</object>`
	entries := ParseHHKEntriesFromText(text, "merge01.chm")
	require.Len(t, entries, 1)
	require.Equal(t, "other.chm", entries[0].SourcePath)
	require.Equal(t, "x.htm", entries[0].TargetLocal)
}

func TestDedupAndAssignIDsCollapsesDuplicatesAndAssignsDense(t *testing.T) {
	entries := []runtime.EntryDetail{
		{Headword: "Birne", SourcePath: "merge01.chm", TargetLocal: "b.htm"},
		{Headword: "Apfel", SourcePath: "merge01.chm", TargetLocal: "a.htm"},
		{Headword: "apfel", SourcePath: "merge01.chm", TargetLocal: "a.htm"},
	}
	out := dedupAndAssignIDs(entries)
	require.Len(t, out, 2)
	require.Equal(t, 1, out[0].ID)
	require.Equal(t, 2, out[1].ID)
	require.Equal(t, "Apfel", out[0].Headword)
	require.Equal(t, "Birne", out[1].Headword)
}

func TestBuildMainVolumeCoverageDetectsMainAndSplitFiles(t *testing.T) {
	names := []string{"merge01.chm", "merge02-1.chm", "merge02-2.chm", "readme.txt"}
	coverage := BuildMainVolumeCoverage(names)
	require.Len(t, coverage, maxMergeVolume)
	require.True(t, coverage[0].HasMainFile)
	require.True(t, coverage[0].Covered)
	require.False(t, coverage[1].HasMainFile)
	require.Equal(t, 2, coverage[1].SplitFileCount)
	require.True(t, coverage[1].Covered)
	require.False(t, coverage[2].Covered)
}

func TestResolveZipPathFindsAncestorRelativePath(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	target := filepath.Join(root, "dataset.zip")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(cwd)
	require.NoError(t, os.Chdir(nested))

	resolved, err := ResolveZipPath("dataset.zip")
	require.NoError(t, err)
	require.Equal(t, target, resolved)
}

func TestResolveZipPathErrorsWithAttemptedList(t *testing.T) {
	_, err := ResolveZipPath("definitely-not-here-12345.zip")
	require.Error(t, err)
}

func TestReservedStemsContainsDefaultStems(t *testing.T) {
	require.True(t, ReservedStems["master"])
	require.True(t, ReservedStems["a"])
	require.False(t, ReservedStems["apfel"])
}
