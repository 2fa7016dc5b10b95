package chm

import "github.com/dictd/dictd/internal/errdef"

// containerLayout is the subset of the ITSF/ITSP headers needed to
// locate the PMGL directory blocks and the start of the data section.
type containerLayout struct {
	dataOffset   uint64
	blocksOffset int
	blockLen     int
	numBlocks    int
	indexHead    int32
}

func readU32LE(buf []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(buf) {
		return 0, errdef.NewFormatError("readU32LE", "offset out of bounds", nil)
	}
	return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24, nil
}

func readI32LE(buf []byte, off int) (int32, error) {
	v, err := readU32LE(buf, off)
	return int32(v), err
}

func readU64LE(buf []byte, off int) (uint64, error) {
	if off < 0 || off+8 > len(buf) {
		return 0, errdef.NewFormatError("readU64LE", "offset out of bounds", nil)
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(buf[off+i])
	}
	return v, nil
}

// parseContainerLayout reads the ITSF outer header and the ITSP
// directory header it points to, following the v2/v3 dataOffset
// fallback rule from the CHM format (v2 has no explicit dataOffset
// field; it is derived from dirOffset+dirLen).
func parseContainerLayout(data []byte) (containerLayout, error) {
	var layout containerLayout
	if len(data) < 4 || string(data[0:4]) != "ITSF" {
		return layout, errdef.NewFormatError("parseContainerLayout", "missing ITSF signature", nil)
	}
	itsfVersion, err := readI32LE(data, 0x04)
	if err != nil {
		return layout, err
	}
	itsfHeaderLen, err := readI32LE(data, 0x08)
	if err != nil {
		return layout, err
	}
	if itsfVersion != 2 && itsfVersion != 3 {
		return layout, errdef.NewFormatError("parseContainerLayout", "unsupported ITSF version", nil)
	}
	if (itsfVersion == 2 && itsfHeaderLen < 0x58) || (itsfVersion == 3 && itsfHeaderLen < 0x60) {
		return layout, errdef.NewFormatError("parseContainerLayout", "invalid ITSF header length", nil)
	}

	dirOffset64, err := readU64LE(data, 0x48)
	if err != nil {
		return layout, err
	}
	dirLen64, err := readU64LE(data, 0x50)
	if err != nil {
		return layout, err
	}
	dirOffset := int(dirOffset64)
	dirLen := int(dirLen64)

	var dataOffset uint64
	if itsfVersion == 3 {
		dataOffset, err = readU64LE(data, 0x58)
		if err != nil {
			return layout, err
		}
	} else {
		dataOffset = uint64(dirOffset + dirLen)
	}
	if dataOffset == 0 {
		dataOffset = uint64(dirOffset + dirLen)
	}

	if dirOffset < 0 || dirOffset+0x54 > len(data) {
		return layout, errdef.NewFormatError("parseContainerLayout", "ITSP header out of bounds", nil)
	}
	itsp := data[dirOffset : dirOffset+0x54]
	if string(itsp[0:4]) != "ITSP" {
		return layout, errdef.NewFormatError("parseContainerLayout", "missing ITSP signature", nil)
	}
	blockLen32, err := readU32LE(itsp, 0x10)
	if err != nil {
		return layout, err
	}
	headerLen, err := readI32LE(itsp, 0x08)
	if err != nil {
		return layout, err
	}
	numBlocksRaw, err := readU32LE(itsp, 0x28)
	if err != nil {
		return layout, err
	}
	indexHead, err := readI32LE(itsp, 0x20)
	if err != nil {
		return layout, err
	}

	dirBlocksLen := dirLen - int(headerLen)
	if dirBlocksLen < 0 {
		return layout, errdef.NewFormatError("parseContainerLayout", "invalid ITSP header len", nil)
	}
	blockLen := int(blockLen32)
	var numBlocks int
	if numBlocksRaw == 0xFFFFFFFF {
		if blockLen == 0 {
			return layout, errdef.NewFormatError("parseContainerLayout", "invalid directory block info", nil)
		}
		numBlocks = dirBlocksLen / blockLen
	} else {
		numBlocks = int(numBlocksRaw)
	}
	if blockLen == 0 || numBlocks == 0 {
		return layout, errdef.NewFormatError("parseContainerLayout", "invalid directory block info", nil)
	}

	layout = containerLayout{
		dataOffset:   dataOffset,
		blocksOffset: dirOffset + int(headerLen),
		blockLen:     blockLen,
		numBlocks:    numBlocks,
		indexHead:    indexHead,
	}
	return layout, nil
}
