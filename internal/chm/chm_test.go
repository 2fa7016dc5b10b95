package chm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCWordSingleByte(t *testing.T) {
	buf := []byte{0x05}
	pos := 0
	v, err := parseCWord(buf, &pos)
	require.NoError(t, err)
	require.Equal(t, uint64(5), v)
	require.Equal(t, 1, pos)
}

func TestParseCWordMultiByte(t *testing.T) {
	// 0x81 0x00 encodes (1<<7) + 0 = 128
	buf := []byte{0x81, 0x00}
	pos := 0
	v, err := parseCWord(buf, &pos)
	require.NoError(t, err)
	require.Equal(t, uint64(128), v)
	require.Equal(t, 2, pos)
}

func TestParseCWordOutOfBounds(t *testing.T) {
	buf := []byte{0x81}
	pos := 0
	_, err := parseCWord(buf, &pos)
	require.Error(t, err)
}

func TestReadU32LERoundTrip(t *testing.T) {
	buf := []byte{0x78, 0x56, 0x34, 0x12}
	v, err := readU32LE(buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(0x12345678), v)
}

func TestReadU64LERoundTrip(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	v, err := readU64LE(buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0807060504030201), v)
}

func TestParseContainerLayoutRejectsBadMagic(t *testing.T) {
	_, err := parseContainerLayout([]byte("NOPE"))
	require.Error(t, err)
}

func TestParseContainerLayoutRejectsUnsupportedVersion(t *testing.T) {
	data := make([]byte, 0x60)
	copy(data, "ITSF")
	data[4] = 9 // version
	_, err := parseContainerLayout(data)
	require.Error(t, err)
}

func TestWindowBitsFor(t *testing.T) {
	require.Equal(t, 16, windowBitsFor(1<<16))
	require.Equal(t, 21, windowBitsFor(1<<21))
}

func TestSaturatingMul32(t *testing.T) {
	require.Equal(t, uint32(100), saturatingMul32(10, 10))
	require.Equal(t, uint32(0xFFFFFFFF), saturatingMul32(0xFFFFFFFF, 2))
}

func TestBlockOutputLenClampsFinalBlock(t *testing.T) {
	ctx := &compressionContext{blockLen: 100, uncompressedLen: 250}
	require.Equal(t, uint64(100), blockOutputLen(ctx, 0))
	require.Equal(t, uint64(100), blockOutputLen(ctx, 1))
	require.Equal(t, uint64(50), blockOutputLen(ctx, 2))
	require.Equal(t, uint64(0), blockOutputLen(ctx, 3))
}

func TestParseDirectoryEntriesSkipsNonPMGLBlocks(t *testing.T) {
	blockLen := 32
	block := make([]byte, blockLen)
	copy(block, "XXXX")
	entries, err := parseDirectoryEntries(block, 0, blockLen, 1)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestParseDirectoryEntriesParsesOneEntry(t *testing.T) {
	blockLen := 64
	block := make([]byte, blockLen)
	copy(block, "PMGL")
	// free_space at 0x04 is written below, once the entry is laid out
	name := "/a.htm"
	pos := 0x14
	pos += writeCWord(block, pos, uint64(len(name)))
	pos += copy(block[pos:], name)
	pos += writeCWord(block, pos, 0)  // space
	pos += writeCWord(block, pos, 10) // start
	pos += writeCWord(block, pos, 20) // length
	freeSpace := blockLen - pos
	putU32LE(block, 0x04, uint32(freeSpace))

	entries, err := parseDirectoryEntries(block, 0, blockLen, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "/a.htm", entries[0].Path)
	require.Equal(t, uint64(10), entries[0].Start)
	require.Equal(t, uint64(20), entries[0].Length)
}

func writeCWord(buf []byte, pos int, v uint64) int {
	// Only exercises the single-byte (<0x80) encoding, sufficient for
	// the small values directory entries in tests use.
	buf[pos] = byte(v)
	return 1
}

func putU32LE(buf []byte, off int, v uint32) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
	buf[off+2] = byte(v >> 16)
	buf[off+3] = byte(v >> 24)
}
