// Package dataset parses a dictionary dataset ZIP archive: the
// master.hhc sitemap, each merge volume's .hhk index (or, failing
// that, a harvest of headwords from its HTML filenames), and the
// diagnostic summary used by `dictd dataset summary`.
package dataset

import (
	"strings"

	"github.com/dictd/dictd/internal/chm"
	"github.com/dictd/dictd/internal/dictext"
	"github.com/dictd/dictd/internal/runtime"
)

// ReservedStems names the default .htm/.html file stems that never
// count as a harvested headword: navigational and metadata pages
// common to every merge volume. A caller with its own
// internal/config.Config.Dataset.ReservedStems list builds an
// overriding set with ReservedStemSet instead of consulting this
// package default directly.
var ReservedStems = map[string]bool{
	"master":                true,
	"index":                 true,
	"version_information":   true,
	"dictionary":            true,
	"a":                     true,
}

// ReservedStemSet builds a lowercase lookup set from a configured list
// of reserved stems, falling back to ReservedStems when stems is empty.
func ReservedStemSet(stems []string) map[string]bool {
	if len(stems) == 0 {
		return ReservedStems
	}
	set := make(map[string]bool, len(stems))
	for _, s := range stems {
		set[strings.ToLower(s)] = true
	}
	return set
}

// ParseMasterHHCText scans raw master.hhc text for
// <object type="text/sitemap">...</object> blocks and extracts the
// Name/Local params of each into a ContentItem.
func ParseMasterHHCText(text string) []runtime.ContentItem {
	var items []runtime.ContentItem
	lower := strings.ToLower(text)
	offset := 0
	for {
		startRel := strings.Index(lower[offset:], `<object`)
		if startRel < 0 {
			break
		}
		typeCheckStart := offset + startRel
		tagEndRel := strings.IndexByte(lower[typeCheckStart:], '>')
		if tagEndRel < 0 {
			break
		}
		objTag := text[typeCheckStart : typeCheckStart+tagEndRel+1]
		if !strings.Contains(strings.ToLower(objTag), `type="text/sitemap"`) {
			offset = typeCheckStart + tagEndRel + 1
			continue
		}

		endRel := strings.Index(lower[typeCheckStart:], "</object>")
		if endRel < 0 {
			break
		}
		block := text[typeCheckStart : typeCheckStart+endRel]
		offset = typeCheckStart + endRel + len("</object>")

		name, _ := findParam(block, "name")
		local, _ := findParam(block, "local")
		if name == "" {
			continue
		}
		items = append(items, runtime.ContentItem{
			Title: dictext.DecodeBasicHTMLEntities(name),
			Local: local,
		})
	}
	return items
}

// findParam returns the value of the first <param name="paramName"
// value="..."> inside block, matched case-insensitively.
func findParam(block, paramName string) (string, bool) {
	lower := strings.ToLower(block)
	needle := `name="` + strings.ToLower(paramName) + `"`
	needleAlt := `name='` + strings.ToLower(paramName) + `'`
	offset := 0
	for {
		idx := strings.Index(lower[offset:], "<param")
		if idx < 0 {
			return "", false
		}
		tagStart := offset + idx
		tagEndRel := strings.IndexByte(lower[tagStart:], '>')
		if tagEndRel < 0 {
			return "", false
		}
		tag := block[tagStart : tagStart+tagEndRel+1]
		lowerTag := strings.ToLower(tag)
		offset = tagStart + tagEndRel + 1
		if !strings.Contains(lowerTag, needle) && !strings.Contains(lowerTag, needleAlt) {
			continue
		}
		if v, ok := dictext.ExtractAttrValue(tag, "value"); ok {
			return v, true
		}
		return "", false
	}
}

// ParseHHKEntriesFromText parses an .hhk sitemap's OBJECT/PARAM blocks
// into EntryDetail records, resolving each entry's source CHM and
// local path via ParseInternalRef/NormalizePath and seeding its alias
// list with the headword and (if distinct) the target's filename stem.
func ParseHHKEntriesFromText(text, defaultSourcePath string) []runtime.EntryDetail {
	var entries []runtime.EntryDetail
	lower := strings.ToLower(text)
	offset := 0
	for {
		startRel := strings.Index(lower[offset:], `<object`)
		if startRel < 0 {
			break
		}
		typeCheckStart := offset + startRel
		tagEndRel := strings.IndexByte(lower[typeCheckStart:], '>')
		if tagEndRel < 0 {
			break
		}
		objTag := text[typeCheckStart : typeCheckStart+tagEndRel+1]
		if !strings.Contains(strings.ToLower(objTag), `type="text/sitemap"`) {
			offset = typeCheckStart + tagEndRel + 1
			continue
		}

		endRel := strings.Index(lower[typeCheckStart:], "</object>")
		if endRel < 0 {
			break
		}
		block := text[typeCheckStart : typeCheckStart+endRel]
		offset = typeCheckStart + endRel + len("</object>")

		name, _ := findParam(block, "name")
		local, _ := findParam(block, "local")
		if name == "" {
			continue
		}
		headword := dictext.DecodeBasicHTMLEntities(name)
		sourcePath := defaultSourcePath
		targetLocal := ""
		if local != "" {
			if ref := runtime.ParseInternalRef(local); ref != nil {
				if ref.SourceOverride != "" {
					sourcePath = ref.SourceOverride
				}
				targetLocal = runtime.NormalizePath(ref.Value)
			}
		}

		aliases := []string{headword}
		if targetLocal != "" {
			stem := dictext.PathStem(targetLocal)
			if stem != "" && !strings.EqualFold(stem, headword) {
				aliases = append(aliases, stem)
			}
		}

		entries = append(entries, runtime.EntryDetail{
			Headword:    headword,
			Aliases:     aliases,
			SourcePath:  sourcePath,
			TargetLocal: targetLocal,
		})
	}
	return entries
}

// ExtractAllHeadwordsFromCHMBytes opens a merge-volume CHM and
// harvests one headword per entry stem not in reserved, used as a
// fallback when a merge volume ships no usable .hhk sitemap. A nil
// reserved falls back to ReservedStems.
func ExtractAllHeadwordsFromCHMBytes(chmBytes []byte, reserved map[string]bool) ([]string, error) {
	if reserved == nil {
		reserved = ReservedStems
	}
	arc, err := chm.Open(chmBytes)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var words []string
	for _, e := range arc.Entries() {
		lowerPath := strings.ToLower(e.Path)
		if !strings.HasSuffix(lowerPath, ".htm") && !strings.HasSuffix(lowerPath, ".html") {
			continue
		}
		stem := dictext.PathStem(e.Path)
		if stem == "" || reserved[strings.ToLower(stem)] {
			continue
		}
		key := strings.ToLower(stem)
		if seen[key] {
			continue
		}
		seen[key] = true
		words = append(words, stem)
	}
	return words, nil
}

// ExtractIndexEntriesFromCHMBytes opens a merge-volume CHM, parses
// every .hhk entry it contains, and falls back to
// ExtractAllHeadwordsFromCHMBytes (one self-aliased entry per
// harvested headword, empty TargetLocal) when that yields nothing. A
// nil reserved falls back to ReservedStems.
func ExtractIndexEntriesFromCHMBytes(chmName string, chmBytes []byte, reserved map[string]bool) ([]runtime.EntryDetail, error) {
	chmName = strings.ToLower(chmName)
	arc, err := chm.Open(chmBytes)
	if err != nil {
		return nil, err
	}

	var entries []runtime.EntryDetail
	for _, e := range arc.Entries() {
		if !strings.HasSuffix(strings.ToLower(e.Path), ".hhk") {
			continue
		}
		raw, err := arc.ReadObject(e.Path)
		if err != nil {
			continue
		}
		text := dictext.DecodeEUCKR(raw)
		entries = append(entries, ParseHHKEntriesFromText(text, chmName)...)
	}

	if len(entries) > 0 {
		return entries, nil
	}

	words, err := ExtractAllHeadwordsFromCHMBytes(chmBytes, reserved)
	if err != nil {
		return nil, err
	}
	entries = make([]runtime.EntryDetail, 0, len(words))
	for _, w := range words {
		entries = append(entries, runtime.EntryDetail{
			Headword:   w,
			Aliases:    []string{w},
			SourcePath: chmName,
		})
	}
	return entries, nil
}
