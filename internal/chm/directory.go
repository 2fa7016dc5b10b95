package chm

import (
	"unicode/utf8"

	"github.com/dictd/dictd/internal/errdef"
)

// DirectoryEntry is one PMGL entry: a named object with its storage
// space index (0 = uncompressed, others index into the DataSpace name
// list, in practice always "MSCompressed" when nonzero) and its
// byte range within that space.
type DirectoryEntry struct {
	Path   string
	Space  uint64
	Start  uint64
	Length uint64
}

// parseCWord decodes a base-128 big-endian varint ("compressed word")
// as used throughout the PMGL directory block format.
func parseCWord(buf []byte, pos *int) (uint64, error) {
	var accum uint64
	for {
		if *pos >= len(buf) {
			return 0, errdef.NewFormatError("parseCWord", "out of bounds", nil)
		}
		b := buf[*pos]
		*pos++
		if b < 0x80 {
			return (accum << 7) + uint64(b), nil
		}
		accum = (accum << 7) + uint64(b&0x7f)
	}
}

// parseDirectoryEntries walks every PMGL block in the directory,
// decoding its run of (nameLen, name, space, start, length) entries.
// A block that fails mid-parse is abandoned at the failure point
// rather than aborting the whole directory, matching upstream CHM
// readers' tolerance of malformed trailing entries.
func parseDirectoryEntries(data []byte, blocksOffset, blockLen, numBlocks int) ([]DirectoryEntry, error) {
	var entries []DirectoryEntry

	for blockIdx := 0; blockIdx < numBlocks; blockIdx++ {
		base := blocksOffset + blockIdx*blockLen
		if base < 0 || base+blockLen > len(data) {
			return nil, errdef.NewFormatError("parseDirectoryEntries", "block out of bounds", nil)
		}
		page := data[base : base+blockLen]
		if len(page) < 4 || string(page[0:4]) != "PMGL" {
			continue
		}
		freeSpace64, err := readU32LE(page, 0x04)
		if err != nil {
			return nil, err
		}
		freeSpace := int(freeSpace64)
		if freeSpace > blockLen {
			continue
		}
		pos := 0x14
		end := blockLen - freeSpace
		for pos < end {
			nameLen64, err := parseCWord(page, &pos)
			if err != nil {
				break
			}
			nameLen := int(nameLen64)
			if nameLen == 0 || pos+nameLen > end {
				break
			}
			nameBytes := page[pos : pos+nameLen]
			if !utf8.Valid(nameBytes) {
				return nil, errdef.NewInputError("parseDirectoryEntries", string(nameBytes), errdef.ErrInvalidPath)
			}
			name := string(nameBytes)
			pos += nameLen

			space, err := parseCWord(page, &pos)
			if err != nil {
				break
			}
			start, err := parseCWord(page, &pos)
			if err != nil {
				break
			}
			length, err := parseCWord(page, &pos)
			if err != nil {
				break
			}
			entries = append(entries, DirectoryEntry{
				Path:   name,
				Space:  space,
				Start:  start,
				Length: length,
			})
		}
	}

	return entries, nil
}
