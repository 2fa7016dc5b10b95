package bleveindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dictd/dictd/internal/runtime"
)

func TestBuildAndSearchFindsMatchingHeadword(t *testing.T) {
	entries := []runtime.EntryDetail{
		{ID: 1, Headword: "Apfel", Aliases: []string{"Apfel"}, DefinitionText: "a round fruit"},
		{ID: 2, Headword: "Birne", Aliases: []string{"Birne"}, DefinitionText: "a different fruit"},
	}
	idx, err := Build(entries)
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Search("apfel", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, 1, hits[0].ID)
}

func TestSearchReturnsEmptyForNoMatch(t *testing.T) {
	entries := []runtime.EntryDetail{
		{ID: 1, Headword: "Apfel", DefinitionText: "a round fruit"},
	}
	idx, err := Build(entries)
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Search("zzzznotfound", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestSearchRespectsLimit(t *testing.T) {
	entries := []runtime.EntryDetail{
		{ID: 1, Headword: "Apfelsorte", DefinitionText: "fruit variety one"},
		{ID: 2, Headword: "Apfelbaum", DefinitionText: "fruit variety two"},
		{ID: 3, Headword: "Apfelkuchen", DefinitionText: "fruit variety three"},
	}
	idx, err := Build(entries)
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Search("fruit", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
}
