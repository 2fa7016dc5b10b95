// Package bleveindex wraps a bleve full-text index over dictionary
// entries, giving runtime.SearchEntries a real inverted index to try
// before it falls back to its linear scorer.
package bleveindex

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/dictd/dictd/internal/errdef"
	"github.com/dictd/dictd/internal/runtime"
)

type entryDoc struct {
	Headword string `json:"headword"`
	Aliases  string `json:"aliases"`
	Body     string `json:"body"`
}

// Index is an in-memory bleve index over one runtime.Index's entries,
// plus the id/headword/source lookup needed to turn bleve hits back
// into runtime.SearchHit values.
type Index struct {
	bi      bleve.Index
	byDocID map[string]int
	entries []runtime.EntryDetail
}

func buildMapping() mapping.IndexMapping {
	entryMapping := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	entryMapping.AddFieldMappingsAt("headword", text)
	entryMapping.AddFieldMappingsAt("aliases", text)
	entryMapping.AddFieldMappingsAt("body", text)

	im := bleve.NewIndexMapping()
	im.AddDocumentMapping("entry", entryMapping)
	im.DefaultMapping = entryMapping
	return im
}

// Build indexes every entry in entries into a new in-memory bleve
// index.
func Build(entries []runtime.EntryDetail) (*Index, error) {
	bi, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, errdef.NewResourceError("bleveindex.Build", "", err)
	}

	byDocID := make(map[string]int, len(entries))
	batch := bi.NewBatch()
	for i, e := range entries {
		docID := fmt.Sprintf("%d", e.ID)
		byDocID[docID] = i
		aliases := ""
		for j, a := range e.Aliases {
			if j > 0 {
				aliases += " "
			}
			aliases += a
		}
		doc := entryDoc{Headword: e.Headword, Aliases: aliases, Body: e.DefinitionText}
		if err := batch.Index(docID, doc); err != nil {
			return nil, errdef.NewResourceError("bleveindex.Build", docID, err)
		}
	}
	if err := bi.Batch(batch); err != nil {
		return nil, errdef.NewResourceError("bleveindex.Build", "", err)
	}

	return &Index{bi: bi, byDocID: byDocID, entries: entries}, nil
}

// Close releases the underlying bleve index.
func (idx *Index) Close() error {
	return idx.bi.Close()
}

// Search implements runtime.BleveSearcher: a conjunction of one match
// query per whitespace-separated term across headword/aliases/body,
// mapped back to runtime.SearchHit with a 180-char snippet and
// non-negative integer score.
func (idx *Index) Search(query string, limit int) ([]runtime.SearchHit, error) {
	q := bleve.NewConjunctionQuery()
	for _, term := range strings.Fields(query) {
		q.AddQuery(bleve.NewMatchQuery(term))
	}
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"headword", "body"}

	result, err := idx.bi.Search(req)
	if err != nil {
		return nil, errdef.NewResourceError("bleveindex.Search", query, err)
	}

	hits := make([]runtime.SearchHit, 0, len(result.Hits))
	for _, h := range result.Hits {
		i, ok := idx.byDocID[h.ID]
		if !ok {
			continue
		}
		e := idx.entries[i]
		score := int(h.Score * 100)
		if score < 0 {
			score = 0
		}
		snippet := e.DefinitionText
		if len(snippet) > 180 {
			snippet = snippet[:180]
		}
		hits = append(hits, runtime.SearchHit{
			ID:         e.ID,
			Headword:   e.Headword,
			SourcePath: e.SourcePath,
			Score:      score,
			Snippet:    snippet,
		})
	}
	return hits, nil
}
