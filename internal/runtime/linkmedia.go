package runtime

import (
	"encoding/base64"
	"strings"

	"github.com/dictd/dictd/internal/chm"
	"github.com/dictd/dictd/internal/errdef"
)

// InternalRef is a parsed in-dictionary href: the local path it points
// at (fragment and query removed), an optional CHM basename override extracted from a
// "name.chm::/path" reference, and whether the path is absolute
// (rooted at its source CHM rather than relative to the current page).
type InternalRef struct {
	SourceOverride string
	Value          string
	IsAbsolute     bool
}

var rejectedSchemes = []string{"http://", "https://", "mailto:", "javascript:", "data:"}

// ParseInternalRef parses an href found inside dictionary HTML,
// rejecting external schemes and pure fragments, and returns nil for
// anything it rejects or that reduces to an empty path.
func ParseInternalRef(raw string) *InternalRef {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	for _, scheme := range rejectedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return nil
		}
	}
	if strings.HasPrefix(trimmed, "#") {
		return nil
	}

	ref := &InternalRef{}
	working := trimmed
	if idx := strings.Index(working, "::/"); idx >= 0 {
		ref.SourceOverride = extractCHMName(working[:idx+3])
		working = working[idx+3:]
		ref.IsAbsolute = true
	}
	if strings.HasPrefix(working, "/") {
		ref.IsAbsolute = true
	}

	if idx := strings.IndexAny(working, "#?"); idx >= 0 {
		working = working[:idx]
	}
	working = strings.ReplaceAll(working, "\\", "/")
	working = strings.TrimPrefix(working, "/")
	for strings.HasPrefix(working, "./") {
		working = working[2:]
	}
	working = strings.TrimSpace(working)
	if working == "" {
		return nil
	}
	ref.Value = working
	return ref
}

// extractCHMName pulls the "name.chm" basename out of a prefix such as
// "foo/bar/name.chm::/" or "name.chm::/".
func extractCHMName(prefix string) string {
	lower := strings.ToLower(prefix)
	idx := strings.Index(lower, ".chm")
	if idx < 0 {
		return ""
	}
	upTo := prefix[:idx+4]
	cut := -1
	for _, sep := range []byte{':', '/', '\\'} {
		if i := strings.LastIndexByte(upTo, sep); i > cut {
			cut = i
		}
	}
	return strings.ToLower(upTo[cut+1:])
}

// NormalizePath collapses "." and ".." segments out of a slash-joined
// path without letting ".." escape the root.
func NormalizePath(input string) string {
	parts := strings.Split(input, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}

// ResolveRelativeLocal resolves local against currentLocal's directory
// when it is not itself absolute.
func ResolveRelativeLocal(local, currentLocal string, isAbsolute bool) string {
	if isAbsolute {
		return NormalizePath(local)
	}
	if idx := strings.LastIndexByte(currentLocal, '/'); idx >= 0 {
		dir := currentLocal[:idx]
		return NormalizePath(dir + "/" + local)
	}
	return NormalizePath(local)
}

var mimeByExt = map[string]string{
	"jpg": "image/jpeg", "jpeg": "image/jpeg", "png": "image/png",
	"gif": "image/gif", "webp": "image/webp", "bmp": "image/bmp",
	"svg": "image/svg+xml", "ico": "image/x-icon",
}

// MimeFromPath returns the MIME type to advertise for a binary object
// inlined as a data URL, defaulting to application/octet-stream for
// unrecognized extensions.
func MimeFromPath(path string) string {
	ext := ""
	if idx := strings.LastIndexByte(path, '.'); idx >= 0 {
		ext = strings.ToLower(path[idx+1:])
	}
	if mime, ok := mimeByExt[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// ReadCHMBinaryObject reads local from arc, trying it as-is, with a
// leading slash, and finally by basename match against every entry
// when neither direct lookup succeeds.
func ReadCHMBinaryObject(arc *chm.Archive, local string) ([]byte, error) {
	local = strings.TrimPrefix(local, "/")
	if b, err := arc.ReadObject(local); err == nil {
		return b, nil
	}
	if b, err := arc.ReadObject("/" + local); err == nil {
		return b, nil
	}
	wantBase := strings.ToLower(pathBase(local))
	for _, e := range arc.Entries() {
		if strings.ToLower(pathBase(e.Path)) == wantBase {
			if b, err := arc.ReadObject(e.Path); err == nil {
				return b, nil
			}
		}
	}
	return nil, errdef.NewResourceError("ReadCHMBinaryObject", local, nil)
}

func pathBase(p string) string {
	if idx := strings.LastIndexByte(p, '/'); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

// CHMOpener opens the CHM for a given source path within a dataset,
// so link/media resolution can stay dataset-source agnostic.
type CHMOpener interface {
	OpenCHM(sourcePath string) (*chm.Archive, error)
}

// ResolveMediaDataURL resolves href (found on the page at
// currentSourcePath/currentLocal) to a binary object and returns it as
// a "data:<mime>;base64,<data>" URL.
func ResolveMediaDataURL(opener CHMOpener, href, currentSourcePath, currentLocal string) (string, error) {
	ref := ParseInternalRef(href)
	if ref == nil {
		return "", errdef.NewInputError("ResolveMediaDataURL", href, nil)
	}
	localPath := ResolveRelativeLocal(ref.Value, currentLocal, ref.IsAbsolute)
	source := currentSourcePath
	if ref.SourceOverride != "" {
		source = ref.SourceOverride
	} else if ref.IsAbsolute {
		source = "master.chm"
	}

	arc, err := opener.OpenCHM(source)
	if err != nil {
		return "", err
	}
	data, err := ReadCHMBinaryObject(arc, localPath)
	if err != nil {
		return "", err
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return "data:" + MimeFromPath(localPath) + ";base64," + encoded, nil
}

// ResolveLinkTarget resolves href to either a content-tree page or a
// dictionary entry. When href points into master.chm, the content
// tree is matched by local path/stem first; otherwise (or failing
// that) entries from the same source CHM are matched by headword or
// alias, falling back to an unscoped match across all entries, and
// finally to a bare Content target naming the unresolved path.
func ResolveLinkTarget(idx *Index, href, currentSourcePath, currentLocal string) (LinkTarget, error) {
	ref := ParseInternalRef(href)
	if ref == nil {
		return LinkTarget{}, errdef.NewInputError("ResolveLinkTarget", href, nil)
	}
	localPath := ResolveRelativeLocal(ref.Value, currentLocal, ref.IsAbsolute)
	source := currentSourcePath
	if ref.SourceOverride != "" {
		source = ref.SourceOverride
	} else if ref.IsAbsolute {
		source = "master.chm"
	}

	stem := pathStemNoExt(localPath)

	if strings.EqualFold(source, "master.chm") {
		for _, c := range idx.Contents {
			if strings.EqualFold(c.Local, localPath) || EqSearchKey(pathStemNoExt(c.Local), stem) {
				return LinkTarget{Kind: LinkTargetContent, Local: c.Local, SourcePath: source}, nil
			}
		}
	}

	for _, e := range idx.Entries {
		if !strings.EqualFold(e.SourcePath, source) {
			continue
		}
		if EqSearchKey(e.Headword, stem) || aliasesMatch(e.Aliases, stem) {
			return LinkTarget{Kind: LinkTargetEntry, EntryID: e.ID}, nil
		}
	}
	for _, e := range idx.Entries {
		if EqSearchKey(e.Headword, stem) || aliasesMatch(e.Aliases, stem) {
			return LinkTarget{Kind: LinkTargetEntry, EntryID: e.ID}, nil
		}
	}

	return LinkTarget{Kind: LinkTargetContent, Local: localPath, SourcePath: source}, nil
}

func aliasesMatch(aliases []string, stem string) bool {
	for _, a := range aliases {
		if EqSearchKey(a, stem) {
			return true
		}
	}
	return false
}

func pathStemNoExt(p string) string {
	base := pathBase(p)
	if idx := strings.LastIndexByte(base, '.'); idx >= 0 {
		return base[:idx]
	}
	return base
}
