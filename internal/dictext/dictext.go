// Package dictext holds the small text-processing toolkit the
// dictionary backend needs to turn legacy Korean-encoded HHC/HHK/HTML
// fragments into clean, searchable strings: EUC-KR decoding, minimal
// HTML entity/tag handling, whitespace normalization, and the
// handful of tag/attribute scrapers used to enrich entries with
// titles and bolded headwords.
package dictext

import (
	"strings"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// DecodeEUCKR decodes a legacy EUC-KR byte string (the encoding CHM
// dictionary HHC/HHK/HTML content from this era is stored in) into
// UTF-8. Malformed sequences are replaced rather than rejected, since
// legacy dictionary content occasionally contains stray bytes that a
// strict decoder would otherwise abort on.
func DecodeEUCKR(b []byte) string {
	out, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), b)
	if err != nil {
		// Best-effort: fall back to whatever the transform produced
		// before failing, rather than losing the whole fragment.
		if out == nil {
			return string(b)
		}
	}
	return string(out)
}

var basicEntityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", "\"",
	"&#39;", "'",
)

// DecodeBasicHTMLEntities replaces the handful of entities that show
// up in this dataset's HHC/HHK sitemaps and HTML bodies. It is
// intentionally not a general HTML entity decoder.
func DecodeBasicHTMLEntities(s string) string {
	return basicEntityReplacer.Replace(s)
}

// StripHTMLTags removes every "<...>" tag from input and decodes the
// small set of entities DecodeBasicHTMLEntities and the nbsp/middot
// pair handle, leaving plain text.
func StripHTMLTags(input string) string {
	var out strings.Builder
	out.Grow(len(input))
	inTag := false
	for _, c := range input {
		switch c {
		case '<':
			inTag = true
			continue
		case '>':
			inTag = false
			continue
		}
		if !inTag {
			out.WriteRune(c)
		}
	}
	decoded := DecodeBasicHTMLEntities(out.String())
	decoded = strings.ReplaceAll(decoded, "&nbsp;", " ")
	decoded = strings.ReplaceAll(decoded, "&middot;", "·")
	return decoded
}

// CompactWS collapses any run of whitespace to a single space and
// trims the result, matching the original dataset's normalization of
// harvested headwords and snippets.
func CompactWS(input string) string {
	fields := strings.Fields(input)
	return strings.Join(fields, " ")
}

// PathStem returns the filename component of path with its extension
// removed, trimmed of surrounding whitespace. Used both for HHK-less
// headword harvesting and for deriving a CHM's own display name.
func PathStem(path string) string {
	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}
	stem := base
	if idx := strings.LastIndexByte(base, '.'); idx >= 0 {
		stem = base[:idx]
	}
	return strings.TrimSpace(stem)
}

// FindAllTagValues returns the trimmed inner text of every
// <tag>...</tag> occurrence in text, matched case-insensitively on
// the tag name.
func FindAllTagValues(text, tag string) []string {
	lower := strings.ToLower(text)
	open := "<" + strings.ToLower(tag) + ">"
	close_ := "</" + strings.ToLower(tag) + ">"

	var out []string
	offset := 0
	for {
		startRel := strings.Index(lower[offset:], open)
		if startRel < 0 {
			break
		}
		valueStart := offset + startRel + len(open)
		endRel := strings.Index(lower[valueStart:], close_)
		if endRel < 0 {
			break
		}
		valueEnd := valueStart + endRel
		out = append(out, strings.TrimSpace(text[valueStart:valueEnd]))
		offset = valueEnd + len(close_)
	}
	return out
}

// FirstParagraphHTML returns the raw (still-tagged) inner HTML of the
// first <p>...</p> element, if any.
func FirstParagraphHTML(text string) (string, bool) {
	return firstElementInner(text, "<p", "</p>")
}

// BodyHTML returns the raw inner HTML of the <body>...</body> element,
// if any.
func BodyHTML(text string) (string, bool) {
	return firstElementInner(text, "<body", "</body>")
}

func firstElementInner(text, openPrefix, closeTag string) (string, bool) {
	lower := strings.ToLower(text)
	start := strings.Index(lower, openPrefix)
	if start < 0 {
		return "", false
	}
	tagEndRel := strings.IndexByte(lower[start:], '>')
	if tagEndRel < 0 {
		return "", false
	}
	tagEnd := start + tagEndRel
	endRel := strings.Index(lower[tagEnd+1:], closeTag)
	if endRel < 0 {
		return "", false
	}
	end := tagEnd + 1 + endRel
	return text[tagEnd+1 : end], true
}

// ExtractFirstBoldText returns the compacted, tag-stripped text of the
// first <b>...</b> element inside the document's first paragraph, the
// heuristic the original dataset uses to recover a display alias for
// entries whose HHK sitemap gives only a bare headword.
func ExtractFirstBoldText(text string) (string, bool) {
	p, ok := FirstParagraphHTML(text)
	if !ok {
		return "", false
	}
	inner, ok := firstElementInner(p, "<b", "</b>")
	if !ok {
		return "", false
	}
	return CompactWS(StripHTMLTags(inner)), true
}

// ExtractAttrValue returns the value of attrName inside a single raw
// tag string such as `<OBJECT type="...">`, supporting both single-
// and double-quoted values.
func ExtractAttrValue(tag, attrName string) (string, bool) {
	lower := strings.ToLower(tag)
	key := strings.ToLower(attrName) + "="
	pos := strings.Index(lower, key)
	if pos < 0 {
		return "", false
	}
	rest := tag[pos+len(key):]
	if rest == "" {
		return "", false
	}
	quote := rest[0]
	if quote != '"' && quote != '\'' {
		return "", false
	}
	rest = rest[1:]
	end := strings.IndexByte(rest, quote)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
