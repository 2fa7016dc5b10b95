package chm

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/dictd/dictd/internal/errdef"
)

// MappedArchive is an Archive backed by a memory-mapped file rather
// than a heap-allocated byte slice, avoiding a full-file copy of a
// standalone .chm file. `dictd chm inspect` opens archives this way;
// link/media resolution opens CHMs from the dataset ZIP with Open.
type MappedArchive struct {
	*Archive
	file *os.File
	data mmap.MMap
}

// OpenFile memory-maps path read-only and parses it as a CHM
// container. Close must be called when the archive is no longer
// needed to release the mapping and file handle.
func OpenFile(path string) (*MappedArchive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errdef.NewResourceError("OpenFile", path, err)
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, errdef.NewResourceError("OpenFile", path, err)
	}
	arc, err := Open(data)
	if err != nil {
		data.Unmap()
		f.Close()
		return nil, err
	}
	return &MappedArchive{Archive: arc, file: f, data: data}, nil
}

// Close releases the memory mapping and underlying file handle.
func (m *MappedArchive) Close() error {
	unmapErr := m.data.Unmap()
	closeErr := m.file.Close()
	if unmapErr != nil {
		return unmapErr
	}
	return closeErr
}
