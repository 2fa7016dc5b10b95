// Package runtime holds the in-memory dictionary runtime built from a
// dataset ZIP: the parsed content tree and entry list, search-key
// precomputation, search, and href/media resolution. The process-wide
// runtime cache and build-status bookkeeping live in internal/store.
package runtime

// ContentItem is one node of the master.hhc sitemap tree: a display
// title paired with the CHM-local path it opens.
type ContentItem struct {
	Title string `json:"title"`
	Local string `json:"local"`
}

// EntryDetail is one dictionary entry: a headword with its aliases,
// which merge-volume CHM it came from, the local path of its HTML
// page (when known), and its hydrated definition text/HTML.
type EntryDetail struct {
	ID             int      `json:"id"`
	Headword       string   `json:"headword"`
	Aliases        []string `json:"aliases"`
	SourcePath     string   `json:"sourcePath"`
	TargetLocal    string   `json:"targetLocal"`
	DefinitionText string   `json:"definitionText"`
	DefinitionHTML string   `json:"definitionHtml"`
}

// ContentPage is a decoded, title/body-extracted HTML page.
type ContentPage struct {
	Local      string `json:"local"`
	SourcePath string `json:"sourcePath"`
	Title      string `json:"title"`
	BodyText   string `json:"bodyText"`
	BodyHTML   string `json:"bodyHtml"`
}

// DictionaryIndexEntry is the lightweight projection of an EntryDetail
// returned from prefix listing, omitting definition text.
type DictionaryIndexEntry struct {
	ID         int      `json:"id"`
	Headword   string   `json:"headword"`
	Aliases    []string `json:"aliases"`
	SourcePath string   `json:"sourcePath"`
}

// SearchHit is one ranked full-text search result.
type SearchHit struct {
	ID         int    `json:"id"`
	Headword   string `json:"headword"`
	SourcePath string `json:"sourcePath"`
	Score      int    `json:"score"`
	Snippet    string `json:"snippet"`
}

// LinkTargetKind discriminates the two LinkTarget variants.
type LinkTargetKind string

const (
	LinkTargetContent LinkTargetKind = "content"
	LinkTargetEntry   LinkTargetKind = "entry"
)

// LinkTarget is the resolved destination of an in-dictionary href:
// either a sitemap content page (Local/SourcePath) or a dictionary
// entry (ID). Exactly one of the two field groups is meaningful,
// selected by Kind.
type LinkTarget struct {
	Kind       LinkTargetKind `json:"kind"`
	Local      string         `json:"local,omitempty"`
	SourcePath string         `json:"sourcePath,omitempty"`
	EntryID    int            `json:"entryId,omitempty"`
}

// MasterFeatureSummary reports the size of a completed build.
type MasterFeatureSummary struct {
	ZipPath      string `json:"zipPath"`
	ContentCount int    `json:"contentCount"`
	IndexCount   int    `json:"indexCount"`
}

// BuildProgress is one progress snapshot emitted while ingesting a
// dataset ZIP.
type BuildProgress struct {
	Phase   string `json:"phase"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// BuildStatus is the latest known state of a build, keyed by dataset
// source. Done distinguishes in-progress from finished; Success is
// only meaningful once Done is true.
type BuildStatus struct {
	Phase   string                `json:"phase"`
	Current int                   `json:"current"`
	Total   int                   `json:"total"`
	Message string                `json:"message"`
	Done    bool                  `json:"done"`
	Success bool                  `json:"success"`
	Error   string                `json:"error,omitempty"`
	Summary *MasterFeatureSummary `json:"summary,omitempty"`
}

// EntrySearchKey precomputes the strict and loose normalized forms of
// an entry's headword, body, and aliases, so repeated prefix/search
// queries never re-normalize the same strings.
type EntrySearchKey struct {
	Headword      string
	HeadwordLoose string
	Body          string
	BodyLoose     string
	Aliases       []string
	AliasesLoose  []string
}

// Index is the fully built, queryable runtime for one dataset: the
// sitemap tree, every entry plus its precomputed search keys, and a
// cache of content pages resolved from master.chm so far.
type Index struct {
	Contents     []ContentItem
	Entries      []EntryDetail
	EntryKeys    []EntrySearchKey
	ContentPages map[string]ContentPage
}

// SourceKind discriminates Source variants. A ZIP path is the only
// variant today; the type exists so a future managed-directory or
// remote source can be added without breaking callers that switch on
// Kind.
type SourceKind string

const SourceKindZipPath SourceKind = "zip_path"

// Source identifies where a dataset's bytes come from.
type Source struct {
	Kind    SourceKind
	ZipPath string
}
