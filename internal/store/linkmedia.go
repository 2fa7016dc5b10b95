package store

import (
	"github.com/dictd/dictd/internal/chm"
	"github.com/dictd/dictd/internal/dataset"
	"github.com/dictd/dictd/internal/runtime"
)

// zipCHMOpener implements runtime.CHMOpener against one dataset ZIP,
// caching opened archives per source CHM name for the lifetime of the
// opener (one resolution call).
type zipCHMOpener struct {
	zipPath string
	cache   map[string]*chm.Archive
}

func (o *zipCHMOpener) OpenCHM(sourcePath string) (*chm.Archive, error) {
	if arc, ok := o.cache[sourcePath]; ok {
		return arc, nil
	}
	data, err := dataset.ReadNamedCHMFromZip(o.zipPath, sourcePath)
	if err != nil {
		return nil, err
	}
	arc, err := chm.Open(data)
	if err != nil {
		return nil, err
	}
	o.cache[sourcePath] = arc
	return arc, nil
}

// ResolveLinkTarget resolves an href found on a page served out of
// zipPath to either a content page or a dictionary entry.
func (s *Store) ResolveLinkTarget(zipPath, href, currentSourcePath, currentLocal string) (runtime.LinkTarget, error) {
	idx, err := s.GetRuntime(zipPath)
	if err != nil {
		return runtime.LinkTarget{}, err
	}
	return runtime.ResolveLinkTarget(idx, href, currentSourcePath, currentLocal)
}

// ResolveMediaDataURL resolves an href found on a page served out of
// zipPath to a "data:<mime>;base64,..." URL.
func (s *Store) ResolveMediaDataURL(zipPath, href, currentSourcePath, currentLocal string) (string, error) {
	opener := &zipCHMOpener{zipPath: zipPath, cache: make(map[string]*chm.Archive)}
	return runtime.ResolveMediaDataURL(opener, href, currentSourcePath, currentLocal)
}
