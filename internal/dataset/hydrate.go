package dataset

import (
	"strings"

	"github.com/dictd/dictd/internal/chm"
	"github.com/dictd/dictd/internal/dictext"
	"github.com/dictd/dictd/internal/errdef"
	"github.com/dictd/dictd/internal/runtime"
)

// ResolveLocalCandidates expands a bare local path into the variants
// worth trying against a CHM's directory: the path as given, with a
// ".html"/".htm" suffix appended when it carries no extension, and
// (for the special "master" stem) both master.html and master.htm.
func ResolveLocalCandidates(local string) []string {
	trimmed := strings.TrimPrefix(local, "/")
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	add(trimmed)
	if !strings.Contains(basename(trimmed), ".") {
		add(trimmed + ".html")
		add(trimmed + ".htm")
	}
	if strings.EqualFold(trimmed, "master") {
		add("master.html")
		add("master.htm")
	}
	return out
}

// ReadCHMObjectWithCandidates tries every ResolveLocalCandidates
// variant of local (as-is and slash-prefixed) before falling back to
// a basename match against every entry in arc.
func ReadCHMObjectWithCandidates(arc *chm.Archive, local string) ([]byte, bool) {
	for _, candidate := range ResolveLocalCandidates(local) {
		if b, err := arc.ReadObject(candidate); err == nil {
			return b, true
		}
		if b, err := arc.ReadObject("/" + candidate); err == nil {
			return b, true
		}
	}
	wantBase := strings.ToLower(basename(local))
	for _, e := range arc.Entries() {
		if strings.ToLower(basename(e.Path)) == wantBase {
			if b, err := arc.ReadObject(e.Path); err == nil {
				return b, true
			}
		}
	}
	return nil, false
}

// ReadEntryHTMLFromCHM locates an entry's HTML page: first by
// ResolveLocalCandidates against targetLocal (when non-empty), then by
// matching any .htm/.html entry whose stem equals headword under
// German-aware normalization.
func ReadEntryHTMLFromCHM(arc *chm.Archive, headword, targetLocal string) ([]byte, bool) {
	if targetLocal != "" {
		if b, ok := ReadCHMObjectWithCandidates(arc, targetLocal); ok {
			return b, true
		}
	}
	for _, e := range arc.Entries() {
		lowerPath := strings.ToLower(e.Path)
		if !strings.HasSuffix(lowerPath, ".htm") && !strings.HasSuffix(lowerPath, ".html") {
			continue
		}
		if runtime.EqSearchKey(dictext.PathStem(e.Path), headword) {
			if b, err := arc.ReadObject(e.Path); err == nil {
				return b, true
			}
		}
	}
	return nil, false
}

// CHMSource loads the raw bytes of a named merge/master CHM out of a
// dataset ZIP, isolating dataset.hydrate from any particular storage
// strategy.
type CHMSource interface {
	LoadCHM(chmName string) ([]byte, error)
}

// ZipCHMSource loads CHM bytes directly from a dataset ZIP path on
// every call. A caller hydrating many entries from the same ZIP should
// wrap this with its own cache.
type ZipCHMSource struct {
	ZipPath string
}

func (z ZipCHMSource) LoadCHM(chmName string) ([]byte, error) {
	return ReadNamedCHMFromZip(z.ZipPath, chmName)
}

// HydrateEntryDetail fills in an EntryDetail's definition text/HTML
// and enriches its aliases with every <title> found on its HTML page
// plus the page's first bold text, when the entry doesn't already
// carry a definition. It is a no-op if DefinitionText is already set.
func HydrateEntryDetail(src CHMSource, entry *runtime.EntryDetail) error {
	if entry.DefinitionText != "" {
		return nil
	}

	data, err := src.LoadCHM(entry.SourcePath)
	if err != nil {
		return err
	}
	arc, err := chm.Open(data)
	if err != nil {
		return err
	}

	raw, ok := ReadEntryHTMLFromCHM(arc, entry.Headword, entry.TargetLocal)
	if !ok {
		return errdef.NewResourceError("HydrateEntryDetail", entry.Headword, nil)
	}
	text := dictext.DecodeEUCKR(raw)

	if p, ok := dictext.FirstParagraphHTML(text); ok {
		entry.DefinitionHTML = p
		entry.DefinitionText = dictext.CompactWS(dictext.StripHTMLTags(p))
	} else if b, ok := dictext.BodyHTML(text); ok {
		entry.DefinitionHTML = b
		entry.DefinitionText = dictext.CompactWS(dictext.StripHTMLTags(b))
	}

	existing := make(map[string]bool)
	for _, a := range entry.Aliases {
		existing[strings.ToLower(a)] = true
	}
	addAlias := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" || existing[strings.ToLower(v)] {
			return
		}
		existing[strings.ToLower(v)] = true
		entry.Aliases = append(entry.Aliases, v)
	}
	for _, title := range dictext.FindAllTagValues(text, "title") {
		addAlias(dictext.DecodeBasicHTMLEntities(title))
	}
	if b, ok := dictext.ExtractFirstBoldText(text); ok {
		addAlias(b)
	}
	return nil
}

// ReadContentPageFromZip loads and decodes the HTML page at local
// within the named source CHM inside zipPath, extracting its title
// and body.
func ReadContentPageFromZip(zipPath, sourcePath, local string) (runtime.ContentPage, error) {
	data, err := ReadNamedCHMFromZip(zipPath, sourcePath)
	if err != nil {
		return runtime.ContentPage{}, err
	}
	arc, err := chm.Open(data)
	if err != nil {
		return runtime.ContentPage{}, err
	}
	raw, ok := ReadCHMObjectWithCandidates(arc, local)
	if !ok {
		return runtime.ContentPage{}, errdef.NewResourceError("ReadContentPageFromZip", local, nil)
	}
	return decodeContentPage(local, sourcePath, raw), nil
}

func decodeContentPage(local, sourcePath string, raw []byte) runtime.ContentPage {
	text := dictext.DecodeEUCKR(raw)
	titles := dictext.FindAllTagValues(text, "title")
	title := local
	if len(titles) > 0 {
		title = dictext.DecodeBasicHTMLEntities(titles[0])
	}
	bodyHTML := ""
	bodyText := ""
	if b, ok := dictext.BodyHTML(text); ok {
		bodyHTML = b
		bodyText = dictext.CompactWS(dictext.StripHTMLTags(b))
	}
	return runtime.ContentPage{
		Local:      local,
		SourcePath: sourcePath,
		Title:      title,
		BodyText:   bodyText,
		BodyHTML:   bodyHTML,
	}
}
