package zipfsm

import "encoding/binary"

// readBuf is a cursor over a little-endian encoded byte slice, mirroring
// the writeBuf helper this lineage's archive-writing side uses for
// constructing ZIP records, but for reading them back.
type readBuf []byte

func (b *readBuf) uint8() uint8 {
	v := (*b)[0]
	*b = (*b)[1:]
	return v
}

func (b *readBuf) uint16() uint16 {
	v := binary.LittleEndian.Uint16(*b)
	*b = (*b)[2:]
	return v
}

func (b *readBuf) uint32() uint32 {
	v := binary.LittleEndian.Uint32(*b)
	*b = (*b)[4:]
	return v
}

func (b *readBuf) uint64() uint64 {
	v := binary.LittleEndian.Uint64(*b)
	*b = (*b)[8:]
	return v
}

// eocdFields is the fixed portion of an end-of-central-directory record,
// plus its trailing comment.
type eocdFields struct {
	diskNumber    uint16
	diskWithCD    uint16
	recordsOnDisk uint16
	totalRecords  uint16
	cdSize        uint32
	cdOffset      uint32
	comment       []byte
}

// locateEOCD scans data, a tail window of the archive starting at absolute
// offset windowStart, backward for the EOCD signature. It returns the index
// within data where a plausible EOCD begins, or -1 if none is found. A
// match is only accepted if its declared comment length would make the
// record end exactly at fileSize, per the design notes' backward-scan
// strategy.
func locateEOCD(data []byte, windowStart uint64, fileSize uint64) int {
	for i := len(data) - directoryEndLen; i >= 0; i-- {
		if binary.LittleEndian.Uint32(data[i:i+4]) != directoryEndSignature {
			continue
		}
		commentLen := int(binary.LittleEndian.Uint16(data[i+20 : i+22]))
		if windowStart+uint64(i)+directoryEndLen+uint64(commentLen) == fileSize {
			return i
		}
	}
	return -1
}

// parseEOCD parses an end-of-central-directory record starting at data[0].
func parseEOCD(data []byte) (*eocdFields, int, error) {
	if len(data) < 4 {
		return nil, 0, needMore(4)
	}
	if binary.LittleEndian.Uint32(data[:4]) != directoryEndSignature {
		return nil, 0, ErrInvalidEocd
	}
	if len(data) < directoryEndLen {
		return nil, 0, needMore(directoryEndLen)
	}
	b := readBuf(data[4:directoryEndLen])
	f := &eocdFields{
		diskNumber:    b.uint16(),
		diskWithCD:    b.uint16(),
		recordsOnDisk: b.uint16(),
		totalRecords:  b.uint16(),
		cdSize:        b.uint32(),
		cdOffset:      b.uint32(),
	}
	commentLen := int(b.uint16())
	total := directoryEndLen + commentLen
	if len(data) < total {
		return nil, 0, needMore(total)
	}
	f.comment = data[directoryEndLen:total]
	return f, total, nil
}

// zip64LocatorFields is the fixed, 20-byte ZIP64 end-of-central-directory
// locator record.
type zip64LocatorFields struct {
	diskWithZip64EOCD uint32
	zip64EOCDOffset   uint64
	totalDisks        uint32
}

func parseZip64Locator(data []byte) (*zip64LocatorFields, int, error) {
	if len(data) < directory64LocLen {
		return nil, 0, needMore(directory64LocLen)
	}
	if binary.LittleEndian.Uint32(data[:4]) != directory64LocSignature {
		return nil, 0, ErrInvalidEocd
	}
	b := readBuf(data[4:directory64LocLen])
	f := &zip64LocatorFields{
		diskWithZip64EOCD: b.uint32(),
		zip64EOCDOffset:   b.uint64(),
		totalDisks:        b.uint32(),
	}
	return f, directory64LocLen, nil
}

// zip64EOCDFields is the fixed, 56-byte prefix of a ZIP64
// end-of-central-directory record. Any trailing extensible data sector
// beyond the fixed fields is not needed by this reader and is skipped by
// the caller jumping directly to the central directory offset.
type zip64EOCDFields struct {
	versionMadeBy, versionNeeded uint16
	diskNumber, diskWithCD       uint32
	recordsOnDisk, totalRecords  uint64
	cdSize, cdOffset             uint64
}

func parseZip64EOCD(data []byte) (*zip64EOCDFields, int, error) {
	if len(data) < directory64EndLen {
		return nil, 0, needMore(directory64EndLen)
	}
	if binary.LittleEndian.Uint32(data[:4]) != directory64EndSignature {
		return nil, 0, ErrInvalidEocd
	}
	// bytes 4:12 hold the "size of zip64 end of central directory record"
	// field, which describes trailing extensible data we don't need.
	b := readBuf(data[12:directory64EndLen])
	f := &zip64EOCDFields{
		versionMadeBy: b.uint16(),
		versionNeeded: b.uint16(),
		diskNumber:    b.uint32(),
		diskWithCD:    b.uint32(),
		recordsOnDisk: b.uint64(),
		totalRecords:  b.uint64(),
		cdSize:        b.uint64(),
		cdOffset:      b.uint64(),
	}
	return f, directory64EndLen, nil
}

// centralDirHeaderFields is the fixed portion of a central directory file
// header, plus its variable-length name, extra, and comment fields.
type centralDirHeaderFields struct {
	creatorVersion    uint16
	readerVersion     uint16
	flags             uint16
	method            uint16
	modTime, modDate  uint16
	crc32             uint32
	compressedSize    uint32
	uncompressedSize  uint32
	diskNumberStart   uint16
	internalAttrs     uint16
	externalAttrs     uint32
	localHeaderOffset uint32
	name, extra       []byte
	comment           []byte
}

func parseCentralDirectoryHeader(data []byte) (*centralDirHeaderFields, int, error) {
	if len(data) < 4 {
		return nil, 0, needMore(4)
	}
	if binary.LittleEndian.Uint32(data[:4]) != directoryHeaderSignature {
		return nil, 0, ErrInvalidCentralHeader
	}
	if len(data) < directoryHeaderLen {
		return nil, 0, needMore(directoryHeaderLen)
	}
	b := readBuf(data[4:directoryHeaderLen])
	f := &centralDirHeaderFields{
		creatorVersion:   b.uint16(),
		readerVersion:    b.uint16(),
		flags:            b.uint16(),
		method:           b.uint16(),
		modTime:          b.uint16(),
		modDate:          b.uint16(),
		crc32:            b.uint32(),
		compressedSize:   b.uint32(),
		uncompressedSize: b.uint32(),
	}
	nameLen := b.uint16()
	extraLen := b.uint16()
	commentLen := b.uint16()
	f.diskNumberStart = b.uint16()
	f.internalAttrs = b.uint16()
	f.externalAttrs = b.uint32()
	f.localHeaderOffset = b.uint32()

	total := directoryHeaderLen + int(nameLen) + int(extraLen) + int(commentLen)
	if len(data) < total {
		return nil, 0, needMore(total)
	}
	rest := data[directoryHeaderLen:total]
	f.name, rest = rest[:nameLen], rest[nameLen:]
	f.extra, rest = rest[:extraLen], rest[extraLen:]
	f.comment = rest[:commentLen]
	return f, total, nil
}

// localFileHeaderFields is the fixed portion of a local file header, plus
// its variable-length name and extra fields.
type localFileHeaderFields struct {
	readerVersion    uint16
	flags            uint16
	method           uint16
	modTime, modDate uint16
	crc32            uint32
	compressedSize   uint32
	uncompressedSize uint32
	name, extra      []byte
}

func parseLocalFileHeader(data []byte) (*localFileHeaderFields, int, error) {
	if len(data) < 4 {
		return nil, 0, needMore(4)
	}
	if binary.LittleEndian.Uint32(data[:4]) != fileHeaderSignature {
		return nil, 0, ErrInvalidLocalHeader
	}
	if len(data) < fileHeaderLen {
		return nil, 0, needMore(fileHeaderLen)
	}
	b := readBuf(data[4:fileHeaderLen])
	f := &localFileHeaderFields{
		readerVersion:    b.uint16(),
		flags:            b.uint16(),
		method:           b.uint16(),
		modTime:          b.uint16(),
		modDate:          b.uint16(),
		crc32:            b.uint32(),
		compressedSize:   b.uint32(),
		uncompressedSize: b.uint32(),
	}
	nameLen := b.uint16()
	extraLen := b.uint16()
	total := fileHeaderLen + int(nameLen) + int(extraLen)
	if len(data) < total {
		return nil, 0, needMore(total)
	}
	rest := data[fileHeaderLen:total]
	f.name, rest = rest[:nameLen], rest[nameLen:]
	f.extra = rest[:extraLen]
	return f, total, nil
}

// dataDescriptorFields is a parsed data descriptor trailer, normalized to
// 64-bit sizes regardless of whether it was encoded with 32- or 64-bit
// fields.
type dataDescriptorFields struct {
	crc32            uint32
	compressedSize   uint64
	uncompressedSize uint64
}

// parseDataDescriptor parses an optional data descriptor trailer. zip64
// selects whether the size fields are 32 or 64 bits wide. The designated
// signature is consumed if present; its absence is valid (§4.F).
func parseDataDescriptor(data []byte, zip64 bool) (*dataDescriptorFields, int, error) {
	sizeFieldLen := 4
	if zip64 {
		sizeFieldLen = 8
	}
	fixedLen := 4 + sizeFieldLen*2 // crc32 + two size fields
	withSigLen := fixedLen + 4

	if len(data) < 4 {
		return nil, 0, needMore(withSigLen)
	}
	hasSignature := binary.LittleEndian.Uint32(data[:4]) == dataDescriptorSignature
	total, start := fixedLen, 0
	if hasSignature {
		total, start = withSigLen, 4
	}
	if len(data) < total {
		return nil, 0, needMore(total)
	}
	b := readBuf(data[start:total])
	f := &dataDescriptorFields{crc32: b.uint32()}
	if zip64 {
		f.compressedSize = b.uint64()
		f.uncompressedSize = b.uint64()
	} else {
		f.compressedSize = uint64(b.uint32())
		f.uncompressedSize = uint64(b.uint32())
	}
	return f, total, nil
}

// findExtraField scans a ZIP extra-field TLV block for the first record
// with the given id, returning its payload.
func findExtraField(extra []byte, id uint16) ([]byte, bool) {
	for len(extra) >= 4 {
		fid := binary.LittleEndian.Uint16(extra[0:2])
		size := int(binary.LittleEndian.Uint16(extra[2:4]))
		if len(extra) < 4+size {
			return nil, false
		}
		data := extra[4 : 4+size]
		if fid == id {
			return data, true
		}
		extra = extra[4+size:]
	}
	return nil, false
}

// zip64Upgrade records which central-directory fields carried the 32-bit
// sentinel value and therefore must be read from the ZIP64 extra field,
// in APPNOTE field order: uncompressed size, compressed size, header
// offset, disk number start.
type zip64Upgrade struct {
	needUncompressed bool
	needCompressed   bool
	needOffset       bool
	needDiskStart    bool
}

func (u zip64Upgrade) any() bool {
	return u.needUncompressed || u.needCompressed || u.needOffset || u.needDiskStart
}

// parseZip64Extra reads the subset of fields requested by need from a ZIP64
// extra field payload, in the fixed order APPNOTE specifies.
func parseZip64Extra(data []byte, need zip64Upgrade) (uncompressed, compressed, offset uint64, diskStart uint32, err error) {
	b := readBuf(data)
	if need.needUncompressed {
		if len(b) < 8 {
			return 0, 0, 0, 0, ErrInvalidCentralHeader
		}
		uncompressed = b.uint64()
	}
	if need.needCompressed {
		if len(b) < 8 {
			return 0, 0, 0, 0, ErrInvalidCentralHeader
		}
		compressed = b.uint64()
	}
	if need.needOffset {
		if len(b) < 8 {
			return 0, 0, 0, 0, ErrInvalidCentralHeader
		}
		offset = b.uint64()
	}
	if need.needDiskStart {
		if len(b) < 4 {
			return 0, 0, 0, 0, ErrInvalidCentralHeader
		}
		diskStart = b.uint32()
	}
	return uncompressed, compressed, offset, diskStart, nil
}
