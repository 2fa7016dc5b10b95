package chm

import (
	"math/bits"

	"github.com/dictd/dictd/internal/errdef"
)

const (
	resetTablePath   = "::dataspace/storage/mscompressed/transform/{7fc28940-9d31-11d0-9b27-00a0c91e9c7c}/instancedata/resettable"
	controlDataPath  = "::dataspace/storage/mscompressed/controldata"
	contentPath      = "::dataspace/storage/mscompressed/content"
)

// lzxParams carries the two LZXC ControlData fields the decoder needs:
// the sliding window size and the number of blocks between resets.
type lzxParams struct {
	windowSize    uint32
	resetBlkcount uint32
}

// compressionContext is everything needed to decode an arbitrary byte
// range of the MSCompressed content stream: where the content stream
// starts, the reset-table geometry, and the LZX window parameters.
type compressionContext struct {
	contentStart    uint64
	blockLen        uint64
	uncompressedLen uint64
	compressedLen   uint64
	blockCount      uint32
	blockOffsets    []uint64
	lzxParams       lzxParams
}

// parseCompressionContext locates the three DataSpace/MSCompressed
// control streams by their well-known lowercased paths and parses
// them. A CHM with no compressed storage (all entries uncompressed)
// returns (nil, nil).
func parseCompressionContext(data []byte, dataOffset uint64, entries []DirectoryEntry, byPath map[string]int) (*compressionContext, error) {
	rtIdx, rtOK := byPath[resetTablePath]
	cdIdx, cdOK := byPath[controlDataPath]
	cnIdx, cnOK := byPath[contentPath]
	if !rtOK || !cdOK || !cnOK {
		return nil, nil
	}

	if rtIdx >= len(entries) || cdIdx >= len(entries) || cnIdx >= len(entries) {
		return nil, errdef.NewFormatError("parseCompressionContext", "control entry index out of range", nil)
	}
	rtEntry := entries[rtIdx]
	cdEntry := entries[cdIdx]
	cnEntry := entries[cnIdx]
	if rtEntry.Space != 0 || cdEntry.Space != 0 || cnEntry.Space != 0 {
		return nil, nil
	}

	rtBytes, err := readUncompressedBytes(data, dataOffset, rtEntry)
	if err != nil {
		return nil, err
	}
	cdBytes, err := readUncompressedBytes(data, dataOffset, cdEntry)
	if err != nil {
		return nil, err
	}

	windowSize, resetBlkcount, err := parseLZXCControlData(cdBytes)
	if err != nil {
		return nil, err
	}
	blockLen, uncompressedLen, compressedLen, blockCount, blockOffsets, err := parseLZXCResetTable(rtBytes)
	if err != nil {
		return nil, err
	}

	return &compressionContext{
		contentStart:    cnEntry.Start,
		blockLen:        blockLen,
		uncompressedLen: uncompressedLen,
		compressedLen:   compressedLen,
		blockCount:      blockCount,
		blockOffsets:    blockOffsets,
		lzxParams: lzxParams{
			windowSize:    windowSize,
			resetBlkcount: resetBlkcount,
		},
	}, nil
}

func blockOutputLen(ctx *compressionContext, block uint64) uint64 {
	start := block * ctx.blockLen
	if start >= ctx.uncompressedLen {
		return 0
	}
	rem := ctx.uncompressedLen - start
	if ctx.blockLen < rem {
		return ctx.blockLen
	}
	return rem
}

func readUncompressedBytes(data []byte, dataOffset uint64, entry DirectoryEntry) ([]byte, error) {
	start := dataOffset + entry.Start
	end := start + entry.Length
	if end > uint64(len(data)) {
		return nil, errdef.NewFormatError("readUncompressedBytes", "out of bounds", nil)
	}
	return data[start:end], nil
}

func parseLZXCControlData(b []byte) (windowSize, resetBlkcount uint32, err error) {
	if len(b) < 0x18 {
		return 0, 0, errdef.NewFormatError("parseLZXCControlData", "LZXC ControlData too short", nil)
	}
	if string(b[4:8]) != "LZXC" {
		return 0, 0, errdef.NewFormatError("parseLZXCControlData", "invalid LZXC signature", nil)
	}
	version, err := readU32LE(b, 0x08)
	if err != nil {
		return 0, 0, err
	}
	resetInterval, err := readU32LE(b, 0x0c)
	if err != nil {
		return 0, 0, err
	}
	windowSize, err = readU32LE(b, 0x10)
	if err != nil {
		return 0, 0, err
	}
	windowsPerReset, err := readU32LE(b, 0x14)
	if err != nil {
		return 0, 0, err
	}

	if version == 2 {
		resetInterval = saturatingMul32(resetInterval, 0x8000)
		windowSize = saturatingMul32(windowSize, 0x8000)
	}
	if windowSize == 0 || resetInterval == 0 {
		return 0, 0, errdef.NewFormatError("parseLZXCControlData", "invalid LZXC control values", nil)
	}
	if bits.OnesCount32(windowSize) != 1 {
		return 0, 0, errdef.NewFormatError("parseLZXCControlData", "LZX window size must be power-of-two", nil)
	}
	halfWindow := windowSize / 2
	if halfWindow == 0 || resetInterval%halfWindow != 0 {
		return 0, 0, errdef.NewFormatError("parseLZXCControlData", "unsupported reset/window relation", nil)
	}
	resetBlkcount = saturatingMul32(resetInterval/halfWindow, windowsPerReset)
	if resetBlkcount == 0 {
		return 0, 0, errdef.NewFormatError("parseLZXCControlData", "invalid reset block count", nil)
	}
	return windowSize, resetBlkcount, nil
}

func parseLZXCResetTable(b []byte) (blockLen, uncompressedLen, compressedLen uint64, blockCount uint32, blockOffsets []uint64, err error) {
	if len(b) < 0x28 {
		return 0, 0, 0, 0, nil, errdef.NewFormatError("parseLZXCResetTable", "LZXC ResetTable too short", nil)
	}
	version, err := readU32LE(b, 0x00)
	if err != nil {
		return 0, 0, 0, 0, nil, err
	}
	if version != 2 {
		return 0, 0, 0, 0, nil, errdef.NewFormatError("parseLZXCResetTable", "unsupported ResetTable version", nil)
	}
	blockCount, err = readU32LE(b, 0x04)
	if err != nil {
		return 0, 0, 0, 0, nil, err
	}
	tableOffset64, err := readU32LE(b, 0x0c)
	if err != nil {
		return 0, 0, 0, 0, nil, err
	}
	tableOffset := int(tableOffset64)
	uncompressedLen, err = readU64LE(b, 0x10)
	if err != nil {
		return 0, 0, 0, 0, nil, err
	}
	compressedLen, err = readU64LE(b, 0x18)
	if err != nil {
		return 0, 0, 0, 0, nil, err
	}
	blockLen, err = readU64LE(b, 0x20)
	if err != nil {
		return 0, 0, 0, 0, nil, err
	}
	if blockCount == 0 || blockLen == 0 {
		return 0, 0, 0, 0, nil, errdef.NewFormatError("parseLZXCResetTable", "invalid ResetTable values", nil)
	}
	tableBytes := int(blockCount) * 8
	if tableOffset+tableBytes > len(b) {
		return 0, 0, 0, 0, nil, errdef.NewFormatError("parseLZXCResetTable", "out of bounds", nil)
	}
	blockOffsets = make([]uint64, blockCount)
	for i := 0; i < int(blockCount); i++ {
		v, err := readU64LE(b, tableOffset+i*8)
		if err != nil {
			return 0, 0, 0, 0, nil, err
		}
		blockOffsets[i] = v
	}
	return blockLen, uncompressedLen, compressedLen, blockCount, blockOffsets, nil
}

func saturatingMul32(a, b uint32) uint32 {
	r := uint64(a) * uint64(b)
	if r > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(r)
}
