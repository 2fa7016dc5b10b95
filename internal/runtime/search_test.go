package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeSearchKeyFoldsUmlautsAndEszett(t *testing.T) {
	require.Equal(t, "aepfel", NormalizeSearchKey("Äpfel"))
	require.Equal(t, "strasse", NormalizeSearchKey("Straße"))
	require.Equal(t, "oel", NormalizeSearchKey("Öl"))
}

func TestNormalizeSearchKeyLooseFoldsDigraphs(t *testing.T) {
	require.Equal(t, "apfel", NormalizeSearchKeyLoose("Äpfel"))
	require.Equal(t, "apfel", NormalizeSearchKeyLoose("Apfel"))
}

func TestEqSearchKeyMatchesAcrossTransliteration(t *testing.T) {
	require.True(t, EqSearchKey("Äpfel", "Aepfel"))
	require.True(t, EqSearchKey("Äpfel", "Apfel"))
	require.False(t, EqSearchKey("Äpfel", "Birne"))
}

func buildTestIndex() *Index {
	entries := []EntryDetail{
		{ID: 1, Headword: "Apfel", Aliases: []string{"Apfel"}, DefinitionText: "a round fruit"},
		{ID: 2, Headword: "Aepfelwein", Aliases: []string{"Apfelwein"}, DefinitionText: "cider made from fruit"},
		{ID: 3, Headword: "Birne", Aliases: []string{"Birne"}, DefinitionText: "a different fruit"},
	}
	return &Index{Entries: entries, EntryKeys: BuildEntrySearchKeys(entries)}
}

func TestGetIndexEntriesMatchesPrefixAcrossUmlautForms(t *testing.T) {
	idx := buildTestIndex()
	hits := GetIndexEntries(idx, "apf", 0)
	require.Len(t, hits, 2)
	require.Equal(t, "Apfel", hits[0].Headword)
}

func TestGetIndexEntriesEmptyPrefixReturnsAll(t *testing.T) {
	idx := buildTestIndex()
	hits := GetIndexEntries(idx, "", 0)
	require.Len(t, hits, 3)
}

func TestSearchEntriesLinearBreaksBodyOnlyScoreTiesByHeadword(t *testing.T) {
	idx := buildTestIndex()
	hits := SearchEntriesLinear(idx.Entries, idx.EntryKeys, "fruit", 10)
	require.Len(t, hits, 3)
	// all three mention "fruit" in the body; headword matches should not
	// appear since none of the headwords contain "fruit" itself, so all
	// three tie on body-only score and sort by headword ascending.
	require.Equal(t, "Aepfelwein", hits[0].Headword)
	require.Equal(t, "Apfel", hits[1].Headword)
	require.Equal(t, "Birne", hits[2].Headword)
}

func TestSearchEntriesLinearRequiresAllTermsToMatch(t *testing.T) {
	idx := buildTestIndex()
	hits := SearchEntriesLinear(idx.Entries, idx.EntryKeys, "fruit birne", 10)
	require.Len(t, hits, 1)
	require.Equal(t, "Birne", hits[0].Headword)
}

func TestSearchEntriesFallsBackToLinearWithoutBleve(t *testing.T) {
	idx := buildTestIndex()
	hits := SearchEntries(idx, nil, "apfel", 10)
	require.NotEmpty(t, hits)
}

type failingSearcher struct{}

func (failingSearcher) Search(query string, limit int) ([]SearchHit, error) {
	return nil, errors.New("no index")
}

func TestSearchEntriesFallsBackToLinearOnBleveError(t *testing.T) {
	idx := buildTestIndex()
	hits := SearchEntries(idx, failingSearcher{}, "apfel", 10)
	require.NotEmpty(t, hits)
}

func TestConfigureSearchOverridesLimitsAndIgnoresZeroFields(t *testing.T) {
	original := limits
	defer func() { limits = original }()

	ConfigureSearch(SearchLimits{SearchMaxLimit: 1, SnippetLength: 4})
	require.Equal(t, 1, limits.SearchMaxLimit)
	require.Equal(t, 4, limits.SnippetLength)
	require.Equal(t, original.PrefixMaxLimit, limits.PrefixMaxLimit)
	require.Equal(t, original.NormalizeCacheSize, limits.NormalizeCacheSize)
}

func TestConfigureSearchGovernsSearchEntriesCapAndSnippetLength(t *testing.T) {
	original := limits
	defer func() { limits = original }()
	ConfigureSearch(SearchLimits{SearchMaxLimit: 1, SnippetLength: 4})

	idx := buildTestIndex()
	hits := SearchEntries(idx, nil, "fruit", 0)
	require.Len(t, hits, 1)
	require.LessOrEqual(t, len(hits[0].Snippet), 4)
}
