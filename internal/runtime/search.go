package runtime

import (
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dictd/dictd/internal/metrics"
)

// SearchLimits mirrors internal/config.Config.Search, letting a loaded
// .dictd.kdl configuration govern the query engine's tuning knobs
// instead of fixed constants. Zero fields keep their current value.
type SearchLimits struct {
	NormalizeCacheSize int
	PrefixDefaultLimit int
	PrefixMaxLimit     int
	SearchMaxLimit     int
	SnippetLength      int
}

// limits holds the process-wide search tuning, seeded with the values
// this package shipped as constants before ConfigureSearch existed.
var limits = SearchLimits{
	NormalizeCacheSize: 65536,
	PrefixDefaultLimit: 200,
	PrefixMaxLimit:     5000,
	SearchMaxLimit:     200,
	SnippetLength:      180,
}

// ConfigureSearch applies l as the process-wide search tuning. Callers
// (internal/store.New, from internal/config.Config.Search) should call
// this before the first normalization or query call: NormalizeCacheSize
// only takes effect on the normalization caches' first use.
func ConfigureSearch(l SearchLimits) {
	if l.NormalizeCacheSize > 0 {
		limits.NormalizeCacheSize = l.NormalizeCacheSize
	}
	if l.PrefixDefaultLimit > 0 {
		limits.PrefixDefaultLimit = l.PrefixDefaultLimit
	}
	if l.PrefixMaxLimit > 0 {
		limits.PrefixMaxLimit = l.PrefixMaxLimit
	}
	if l.SearchMaxLimit > 0 {
		limits.SearchMaxLimit = l.SearchMaxLimit
	}
	if l.SnippetLength > 0 {
		limits.SnippetLength = l.SnippetLength
	}
}

var (
	strictCache     *lru.Cache[string, string]
	looseCache      *lru.Cache[string, string]
	normalizeOnce   sync.Once
	normalizeCaches sync.Mutex
)

func ensureNormalizeCaches() {
	normalizeOnce.Do(func() {
		strictCache, _ = lru.New[string, string](limits.NormalizeCacheSize)
		looseCache, _ = lru.New[string, string](limits.NormalizeCacheSize)
	})
}

var umlautReplacer = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")
var looseReplacer = strings.NewReplacer("ae", "a", "oe", "o", "ue", "u")

// NormalizeSearchKey lowercases s and folds German umlauts/eszett to
// their ASCII digraph forms (ä→ae, ö→oe, ü→ue, ß→ss), matching
// headword comparisons across transliteration variants. Results are
// memoized in a bounded LRU cache since the same headwords and query
// terms are normalized repeatedly across prefix and search calls.
func NormalizeSearchKey(s string) string {
	ensureNormalizeCaches()
	normalizeCaches.Lock()
	if v, ok := strictCache.Get(s); ok {
		normalizeCaches.Unlock()
		metrics.Default.IncNormalizeHit()
		return v
	}
	normalizeCaches.Unlock()
	metrics.Default.IncNormalizeMiss()

	v := umlautReplacer.Replace(strings.ToLower(s))

	normalizeCaches.Lock()
	strictCache.Add(s, v)
	normalizeCaches.Unlock()
	return v
}

// NormalizeSearchKeyLoose further folds ae/oe/ue digraphs produced by
// NormalizeSearchKey down to a/o/u, matching users who type "Apfel"
// against a source that spells it "Aepfel" or vice versa.
func NormalizeSearchKeyLoose(s string) string {
	ensureNormalizeCaches()
	normalizeCaches.Lock()
	if v, ok := looseCache.Get(s); ok {
		normalizeCaches.Unlock()
		return v
	}
	normalizeCaches.Unlock()

	v := looseReplacer.Replace(NormalizeSearchKey(s))

	normalizeCaches.Lock()
	looseCache.Add(s, v)
	normalizeCaches.Unlock()
	return v
}

// EqSearchKey reports whether a and b are equal under either the
// strict or loose normalization.
func EqSearchKey(a, b string) bool {
	if NormalizeSearchKey(a) == NormalizeSearchKey(b) {
		return true
	}
	return NormalizeSearchKeyLoose(a) == NormalizeSearchKeyLoose(b)
}

func startsWithSearchKey(strict, loose, pStrict, pLoose string) bool {
	return strings.HasPrefix(strict, pStrict) || strings.HasPrefix(loose, pLoose)
}

func containsSearchKey(strict, loose, tStrict, tLoose string) bool {
	return strings.Contains(strict, tStrict) || strings.Contains(loose, tLoose)
}

// BuildEntrySearchKeys precomputes the strict/loose forms of every
// entry's headword, aliases, and definition text.
func BuildEntrySearchKeys(entries []EntryDetail) []EntrySearchKey {
	keys := make([]EntrySearchKey, len(entries))
	for i, e := range entries {
		aliasesStrict := make([]string, len(e.Aliases))
		aliasesLoose := make([]string, len(e.Aliases))
		for j, a := range e.Aliases {
			aliasesStrict[j] = NormalizeSearchKey(a)
			aliasesLoose[j] = NormalizeSearchKeyLoose(a)
		}
		keys[i] = EntrySearchKey{
			Headword:      NormalizeSearchKey(e.Headword),
			HeadwordLoose: NormalizeSearchKeyLoose(e.Headword),
			Body:          NormalizeSearchKey(e.DefinitionText),
			BodyLoose:     NormalizeSearchKeyLoose(e.DefinitionText),
			Aliases:       aliasesStrict,
			AliasesLoose:  aliasesLoose,
		}
	}
	return keys
}

// GetIndexEntries lists entries whose headword starts with prefix
// (case-/umlaut-insensitive), up to limit. An empty prefix lists every
// entry (clamped to the total count unless limit narrows it further).
func GetIndexEntries(idx *Index, prefix string, limit int) []DictionaryIndexEntry {
	total := len(idx.Entries)
	pStrict := NormalizeSearchKey(prefix)
	pLoose := NormalizeSearchKeyLoose(prefix)

	if limit <= 0 {
		if prefix == "" {
			limit = total
		} else {
			limit = limits.PrefixDefaultLimit
		}
	}
	maxLimit := limits.PrefixMaxLimit
	if prefix == "" {
		maxLimit = total
		if maxLimit < 1 {
			maxLimit = 1
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	out := make([]DictionaryIndexEntry, 0, limit)
	for i, e := range idx.Entries {
		if len(out) >= limit {
			break
		}
		if prefix != "" {
			k := idx.EntryKeys[i]
			if !startsWithSearchKey(k.Headword, k.HeadwordLoose, pStrict, pLoose) {
				continue
			}
		}
		out = append(out, DictionaryIndexEntry{
			ID:         e.ID,
			Headword:   e.Headword,
			Aliases:    e.Aliases,
			SourcePath: e.SourcePath,
		})
	}
	return out
}

// SearchEntriesLinear scores every entry against the AND of query's
// whitespace-separated terms: +5 for a headword/alias match, +2 for a
// body match, per matched term. Entries matching zero terms, or
// failing to match any one term anywhere, are excluded. Results sort
// by score desc then headword asc.
func SearchEntriesLinear(entries []EntryDetail, keys []EntrySearchKey, query string, limit int) []SearchHit {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil
	}
	type termKey struct{ strict, loose string }
	termKeys := make([]termKey, len(terms))
	for i, t := range terms {
		termKeys[i] = termKey{NormalizeSearchKey(t), NormalizeSearchKeyLoose(t)}
	}

	var hits []SearchHit
	for i, e := range entries {
		k := keys[i]
		score := 0
		matched := true
		for _, tk := range termKeys {
			inHead := containsSearchKey(k.Headword, k.HeadwordLoose, tk.strict, tk.loose)
			if !inHead {
				for j := range k.Aliases {
					if containsSearchKey(k.Aliases[j], k.AliasesLoose[j], tk.strict, tk.loose) {
						inHead = true
						break
					}
				}
			}
			inBody := containsSearchKey(k.Body, k.BodyLoose, tk.strict, tk.loose)
			if !inHead && !inBody {
				matched = false
				break
			}
			if inHead {
				score += 5
			}
			if inBody {
				score += 2
			}
		}
		if !matched {
			continue
		}
		snippet := e.DefinitionText
		if len(snippet) > limits.SnippetLength {
			snippet = snippet[:limits.SnippetLength]
		}
		hits = append(hits, SearchHit{
			ID:         e.ID,
			Headword:   e.Headword,
			SourcePath: e.SourcePath,
			Score:      score,
			Snippet:    snippet,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Headword < hits[j].Headword
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// SearchEntries runs the inverted index search (via the optional
// bleveindex.Index, when one has been built for this runtime) and
// falls back to SearchEntriesLinear on any index error, including
// there being no index at all.
func SearchEntries(idx *Index, bidx BleveSearcher, query string, limit int) []SearchHit {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return nil
	}
	if limit <= 0 {
		limit = limits.SearchMaxLimit
	}
	if limit > limits.SearchMaxLimit {
		limit = limits.SearchMaxLimit
	}

	if bidx != nil {
		if hits, err := bidx.Search(query, limit); err == nil {
			return hits
		}
	}
	return SearchEntriesLinear(idx.Entries, idx.EntryKeys, query, limit)
}

// BleveSearcher is the interface runtime.SearchEntries uses to reach
// an optional bleve-backed inverted index, kept narrow so the runtime
// package does not import bleve directly.
type BleveSearcher interface {
	Search(query string, limit int) ([]SearchHit, error)
}
