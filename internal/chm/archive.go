// Package chm opens Microsoft Compiled HTML Help (.chm) containers
// and reads both stored and LZX-compressed objects out of them. It
// implements just enough of the ITSF/ITSP/PMGL container format and
// the MSCompressed DataSpace to serve a read-only dictionary backend:
// directory enumeration, path lookup, and streamed object reads.
package chm

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dictd/dictd/internal/chm/lzx"
	"github.com/dictd/dictd/internal/errdef"
	"github.com/dictd/dictd/internal/metrics"
)

const blockCacheSize = 512

// Archive is an opened CHM container. Decoding of compressed objects
// is serialized by an internal mutex that guards the LZX decode state
// and the decoded-block cache, so concurrent reads of one Archive run
// one at a time (Open only parses headers and the directory, so
// opening one Archive per goroutine is cheap when parallel decode is
// wanted).
type Archive struct {
	data       []byte
	dataOffset uint64
	entries    []DirectoryEntry
	byPath     map[string]int
	compressed *compressionContext

	mu            sync.Mutex
	blockCache    *lru.Cache[uint64, []byte]
	nativeStreams map[uint64]*nativeStream
}

type nativeStream struct {
	nextBlock uint64
	state     *lzx.State
}

// Open parses a CHM container already loaded into memory. Ownership
// of data is retained by the Archive for the lifetime of reads; the
// caller must not mutate it afterwards.
func Open(data []byte) (*Archive, error) {
	layout, err := parseContainerLayout(data)
	if err != nil {
		return nil, err
	}
	entries, err := parseDirectoryEntries(data, layout.blocksOffset, layout.blockLen, layout.numBlocks)
	if err != nil {
		return nil, err
	}

	byPath := make(map[string]int, len(entries))
	for i, e := range entries {
		byPath[strings.ToLower(e.Path)] = i
	}

	compressed, err := parseCompressionContext(data, layout.dataOffset, entries, byPath)
	if err != nil {
		return nil, err
	}

	cache, err := lru.New[uint64, []byte](blockCacheSize)
	if err != nil {
		return nil, errdef.NewResourceError("Open", "block cache", err)
	}

	return &Archive{
		data:          data,
		dataOffset:    layout.dataOffset,
		entries:       entries,
		byPath:        byPath,
		compressed:    compressed,
		blockCache:    cache,
		nativeStreams: make(map[uint64]*nativeStream),
	}, nil
}

// Entries returns every directory entry in container order.
func (a *Archive) Entries() []DirectoryEntry {
	return a.entries
}

// FindEntry looks up a path case-insensitively, trying the path
// as-is and then with a single leading slash stripped (CHM internal
// paths are conventionally slash-rooted but some producers omit it).
func (a *Archive) FindEntry(path string) (DirectoryEntry, bool) {
	raw := strings.ToLower(path)
	if idx, ok := a.byPath[raw]; ok {
		return a.entries[idx], true
	}
	trimmed := strings.ToLower(strings.TrimPrefix(path, "/"))
	idx, ok := a.byPath[trimmed]
	if !ok {
		return DirectoryEntry{}, false
	}
	return a.entries[idx], true
}

// ReadObject reads the full contents of the named entry, transparently
// decompressing it if it lives in the MSCompressed space.
func (a *Archive) ReadObject(path string) ([]byte, error) {
	entry, ok := a.FindEntry(path)
	if !ok {
		return nil, errdef.NewResourceError("ReadObject", path, nil)
	}
	if entry.Space != 0 {
		return a.readCompressedObject(entry.Start, entry.Length)
	}
	start := a.dataOffset + entry.Start
	end := start + entry.Length
	if end > uint64(len(a.data)) {
		return nil, errdef.NewFormatError("ReadObject", "stored object out of bounds", nil)
	}
	out := make([]byte, entry.Length)
	copy(out, a.data[start:end])
	return out, nil
}

func (a *Archive) readCompressedObject(start, length uint64) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx := a.compressed
	if ctx == nil || ctx.blockLen == 0 {
		return nil, errdef.NewFormatError("readCompressedObject", "no compressed storage", nil)
	}

	out := make([]byte, 0, length)
	remaining := length
	pos := start

	for remaining > 0 {
		block := pos / ctx.blockLen
		offsetInBlock := pos % ctx.blockLen
		take := remaining
		if avail := ctx.blockLen - offsetInBlock; avail < take {
			take = avail
		}
		blockData, err := a.decompressBlock(ctx, block)
		if err != nil {
			return nil, err
		}
		if offsetInBlock+take > uint64(len(blockData)) {
			return nil, errdef.NewFormatError("readCompressedObject", "decoded block shorter than expected", nil)
		}
		out = append(out, blockData[offsetInBlock:offsetInBlock+take]...)
		remaining -= take
		pos += take
	}

	return out, nil
}

// decompressBlock returns the decoded bytes for one fixed-size LZX
// block, served from cache when possible. Must be called with a.mu
// held.
func (a *Archive) decompressBlock(ctx *compressionContext, block uint64) ([]byte, error) {
	if v, ok := a.blockCache.Get(block); ok {
		metrics.Default.IncBlockCacheHit()
		return v, nil
	}
	metrics.Default.IncBlockCacheMiss()
	return a.decompressBlockNative(ctx, block)
}

// decompressBlockNative advances (or restarts) the streaming LZX
// cursor for this block's reset window up to and including the
// requested block. LZX state is only valid moving forward from a
// reset point, so a request behind the cursor forces a restart from
// the reset base; a decode failure anywhere in the run triggers one
// correctness-preserving retry with a completely fresh cursor before
// giving up.
func (a *Archive) decompressBlockNative(ctx *compressionContext, block uint64) ([]byte, error) {
	windowBits := windowBitsFor(ctx.lzxParams.windowSize)
	resetBlkcount := ctx.lzxParams.resetBlkcount
	if resetBlkcount == 0 {
		resetBlkcount = 1
	}
	resetBase := block - block%uint64(resetBlkcount)

	stream, ok := a.nativeStreams[resetBase]
	if !ok || stream.nextBlock > block {
		state, err := lzx.NewState(windowBits)
		if err != nil {
			return nil, errdef.NewDecodeError("decompressBlockNative", int(block), err)
		}
		stream = &nativeStream{nextBlock: resetBase, state: state}
	}
	delete(a.nativeStreams, resetBase)

	var target []byte
	var failedAt uint64
	var failedErr error
	for b := stream.nextBlock; b <= block; b++ {
		cmp, err := a.readCompressedBlockBytes(ctx, b)
		if err != nil {
			return nil, err
		}
		outLen := int(blockOutputLen(ctx, b))
		padded := padForLZX(cmp)
		out, err := lzx.DecompressBlock(stream.state, padded, outLen)
		if err != nil {
			failedAt, failedErr = b, err
			break
		}
		a.blockCache.Add(b, out)
		if b == block {
			target = out
		}
	}

	if failedErr != nil {
		freshState, err := lzx.NewState(windowBits)
		if err != nil {
			return nil, errdef.NewDecodeError("decompressBlockNative", int(block), err)
		}
		fresh, err := a.decompressBlockNativeFresh(ctx, resetBase, block, freshState)
		if err != nil {
			return nil, errdef.NewDecodeError("decompressBlockNative", int(failedAt),
				errdef.NewMultiError([]error{failedErr, err}))
		}
		a.nativeStreams[resetBase] = &nativeStream{nextBlock: block + 1, state: freshState}
		return fresh, nil
	}

	stream.nextBlock = block + 1
	a.nativeStreams[resetBase] = stream
	if target == nil {
		target = []byte{}
	}
	return target, nil
}

func (a *Archive) decompressBlockNativeFresh(ctx *compressionContext, resetBase, block uint64, state *lzx.State) ([]byte, error) {
	var target []byte
	for b := resetBase; b <= block; b++ {
		cmp, err := a.readCompressedBlockBytes(ctx, b)
		if err != nil {
			return nil, err
		}
		outLen := int(blockOutputLen(ctx, b))
		padded := padForLZX(cmp)
		out, err := lzx.DecompressBlock(state, padded, outLen)
		if err != nil {
			return nil, err
		}
		a.blockCache.Add(b, out)
		if b == block {
			target = out
		}
	}
	if target == nil {
		target = []byte{}
	}
	return target, nil
}

func (a *Archive) readCompressedBlockBytes(ctx *compressionContext, block uint64) ([]byte, error) {
	if block >= uint64(ctx.blockCount) {
		return nil, errdef.NewFormatError("readCompressedBlockBytes", "block index out of range", nil)
	}
	startOff := ctx.blockOffsets[block]
	var endOff uint64
	if int(block)+1 < len(ctx.blockOffsets) {
		endOff = ctx.blockOffsets[block+1]
	} else {
		endOff = ctx.compressedLen
	}
	if endOff < startOff {
		return nil, errdef.NewFormatError("readCompressedBlockBytes", "invalid block offset ordering", nil)
	}
	absStart := a.dataOffset + ctx.contentStart + startOff
	absEnd := a.dataOffset + ctx.contentStart + endOff
	if absEnd > uint64(len(a.data)) {
		return nil, errdef.NewFormatError("readCompressedBlockBytes", "out of bounds", nil)
	}
	return a.data[absStart:absEnd], nil
}

// padForLZX appends the two zero bytes the bit reader's final
// ensure_bits call may read past the end of a block's true compressed
// length.
func padForLZX(b []byte) []byte {
	padded := make([]byte, len(b)+2)
	copy(padded, b)
	return padded
}

func windowBitsFor(windowSize uint32) int {
	bits := 0
	for windowSize > 1 {
		windowSize >>= 1
		bits++
	}
	return bits
}
