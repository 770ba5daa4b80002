package zipfsm

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// archiveBuilder assembles a well-formed (or deliberately malformed, via its
// lower-level helpers) ZIP byte stream for tests, the way this lineage's
// partsBuilder accumulated parts at a running offset when assembling an
// archive for serving. Unlike partsBuilder, archiveBuilder produces a flat
// []byte rather than an io.ReadSeeker, since tests feed archives to
// ArchiveFSM/EntryFSM through a SliceSource rather than through ReadAt.
type archiveBuilder struct {
	buf     bytes.Buffer
	entries []builtEntry
}

type builtEntry struct {
	name             string
	method           uint16
	offset           uint64
	compressedSize   uint64
	uncompressedSize uint64
	crc32            uint32
	flags            uint16
	zip64            bool
}

// addStoredEntry appends a Store-method local file header and payload for
// name/content, recording it for a later writeCentralDirectory call.
func (b *archiveBuilder) addStoredEntry(name string, content []byte) {
	b.addEntry(name, Store, content, content)
}

// addEntry appends a local file header and raw (already encoded, e.g.
// already-deflated) payload, recording uncompressedSize as the size the
// central directory and CRC should be computed against.
func (b *archiveBuilder) addEntry(name string, method uint16, raw []byte, uncompressed []byte) {
	offset := uint64(b.buf.Len())
	sum := crc32.ChecksumIEEE(uncompressed)

	var hdr [30]byte
	binary.LittleEndian.PutUint32(hdr[0:4], fileHeaderSignature)
	binary.LittleEndian.PutUint16(hdr[4:6], 20)
	binary.LittleEndian.PutUint16(hdr[6:8], 0)
	binary.LittleEndian.PutUint16(hdr[8:10], method)
	binary.LittleEndian.PutUint16(hdr[10:12], 0)
	binary.LittleEndian.PutUint16(hdr[12:14], 0)
	binary.LittleEndian.PutUint32(hdr[14:18], sum)
	binary.LittleEndian.PutUint32(hdr[18:22], uint32(len(raw)))
	binary.LittleEndian.PutUint32(hdr[22:26], uint32(len(uncompressed)))
	binary.LittleEndian.PutUint16(hdr[26:28], uint16(len(name)))
	binary.LittleEndian.PutUint16(hdr[28:30], 0)

	b.buf.Write(hdr[:])
	b.buf.WriteString(name)
	b.buf.Write(raw)

	b.entries = append(b.entries, builtEntry{
		name:             name,
		method:           method,
		offset:           offset,
		compressedSize:   uint64(len(raw)),
		uncompressedSize: uint64(len(uncompressed)),
		crc32:            sum,
	})
}

// addEntryWithDataDescriptor appends a local file header with the
// has-data-descriptor flag (bit 3) set and zeroed crc32/sizes, the raw
// payload, and a trailing data descriptor carrying the real values —
// either with its optional designated signature or without it, per §4.F's
// "signature presence is heuristic" rule. The central directory record
// still carries the correct crc32/sizes, matching how a conforming writer
// that streams entries out fills in the central directory afterward.
func (b *archiveBuilder) addEntryWithDataDescriptor(name string, content []byte, withSignature bool) {
	offset := uint64(b.buf.Len())
	sum := crc32.ChecksumIEEE(content)

	var hdr [30]byte
	binary.LittleEndian.PutUint32(hdr[0:4], fileHeaderSignature)
	binary.LittleEndian.PutUint16(hdr[4:6], 20)
	binary.LittleEndian.PutUint16(hdr[6:8], 0x8) // bit 3: data descriptor follows
	binary.LittleEndian.PutUint16(hdr[8:10], Store)
	binary.LittleEndian.PutUint16(hdr[10:12], 0)
	binary.LittleEndian.PutUint16(hdr[12:14], 0)
	binary.LittleEndian.PutUint32(hdr[14:18], 0)
	binary.LittleEndian.PutUint32(hdr[18:22], 0)
	binary.LittleEndian.PutUint32(hdr[22:26], 0)
	binary.LittleEndian.PutUint16(hdr[26:28], uint16(len(name)))
	binary.LittleEndian.PutUint16(hdr[28:30], 0)

	b.buf.Write(hdr[:])
	b.buf.WriteString(name)
	b.buf.Write(content)

	var dd []byte
	if withSignature {
		dd = make([]byte, dataDescriptorLen)
		binary.LittleEndian.PutUint32(dd[0:4], dataDescriptorSignature)
		binary.LittleEndian.PutUint32(dd[4:8], sum)
		binary.LittleEndian.PutUint32(dd[8:12], uint32(len(content)))
		binary.LittleEndian.PutUint32(dd[12:16], uint32(len(content)))
	} else {
		dd = make([]byte, dataDescriptorLen-4)
		binary.LittleEndian.PutUint32(dd[0:4], sum)
		binary.LittleEndian.PutUint32(dd[4:8], uint32(len(content)))
		binary.LittleEndian.PutUint32(dd[8:12], uint32(len(content)))
	}
	b.buf.Write(dd)

	b.entries = append(b.entries, builtEntry{
		name:             name,
		method:           Store,
		offset:           offset,
		compressedSize:   uint64(len(content)),
		uncompressedSize: uint64(len(content)),
		crc32:            sum,
		flags:            0x8,
	})
}

// addZip64Entry appends a Store entry whose central directory record uses
// the ZIP64 32-bit sentinel for compressed size, uncompressed size, and
// local header offset, with the real values carried in a trailing ZIP64
// extra field instead — exercising the extra-field upgrade path (§4.B)
// without needing a multi-gigabyte fixture to trigger it for real.
func (b *archiveBuilder) addZip64Entry(name string, content []byte) {
	b.addEntry(name, Store, content, content)
	b.entries[len(b.entries)-1].zip64 = true
}

// writeCentralDirectory appends one central directory header per recorded
// entry and returns the directory's starting offset and total size.
func (b *archiveBuilder) writeCentralDirectory() (cdOffset, cdSize uint64) {
	cdOffset = uint64(b.buf.Len())
	for _, e := range b.entries {
		var extra []byte
		compressedSize, uncompressedSize, offset := e.compressedSize, e.uncompressedSize, e.offset
		if e.zip64 {
			extra = make([]byte, 28)
			binary.LittleEndian.PutUint16(extra[0:2], zip64ExtraID)
			binary.LittleEndian.PutUint16(extra[2:4], 24)
			binary.LittleEndian.PutUint64(extra[4:12], e.uncompressedSize)
			binary.LittleEndian.PutUint64(extra[12:20], e.compressedSize)
			binary.LittleEndian.PutUint64(extra[20:28], e.offset)
			compressedSize, uncompressedSize, offset = uint32max, uint32max, uint32max
		}

		var hdr [46]byte
		binary.LittleEndian.PutUint32(hdr[0:4], directoryHeaderSignature)
		binary.LittleEndian.PutUint16(hdr[4:6], 20)
		binary.LittleEndian.PutUint16(hdr[6:8], 20)
		binary.LittleEndian.PutUint16(hdr[8:10], e.flags)
		binary.LittleEndian.PutUint16(hdr[10:12], e.method)
		binary.LittleEndian.PutUint16(hdr[12:14], 0)
		binary.LittleEndian.PutUint16(hdr[14:16], 0)
		binary.LittleEndian.PutUint32(hdr[16:20], e.crc32)
		binary.LittleEndian.PutUint32(hdr[20:24], uint32(compressedSize))
		binary.LittleEndian.PutUint32(hdr[24:28], uint32(uncompressedSize))
		binary.LittleEndian.PutUint16(hdr[28:30], uint16(len(e.name)))
		binary.LittleEndian.PutUint16(hdr[30:32], uint16(len(extra)))
		binary.LittleEndian.PutUint16(hdr[32:34], 0)
		binary.LittleEndian.PutUint16(hdr[34:36], 0)
		binary.LittleEndian.PutUint16(hdr[36:38], 0)
		binary.LittleEndian.PutUint32(hdr[38:42], 0)
		binary.LittleEndian.PutUint32(hdr[42:46], uint32(offset))

		b.buf.Write(hdr[:])
		b.buf.WriteString(e.name)
		b.buf.Write(extra)
	}
	cdSize = uint64(b.buf.Len()) - cdOffset
	return cdOffset, cdSize
}

// build appends the central directory and end-of-central-directory record
// and returns the complete archive bytes.
func (b *archiveBuilder) build(comment string) []byte {
	cdOffset, cdSize := b.writeCentralDirectory()

	var eocd [22]byte
	binary.LittleEndian.PutUint32(eocd[0:4], directoryEndSignature)
	binary.LittleEndian.PutUint16(eocd[4:6], 0)
	binary.LittleEndian.PutUint16(eocd[6:8], 0)
	binary.LittleEndian.PutUint16(eocd[8:10], uint16(len(b.entries)))
	binary.LittleEndian.PutUint16(eocd[10:12], uint16(len(b.entries)))
	binary.LittleEndian.PutUint32(eocd[12:16], uint32(cdSize))
	binary.LittleEndian.PutUint32(eocd[16:20], uint32(cdOffset))
	binary.LittleEndian.PutUint16(eocd[20:22], uint16(len(comment)))

	b.buf.Write(eocd[:])
	b.buf.WriteString(comment)

	return b.buf.Bytes()
}

// buildForceZip64 builds the archive like build, but always emits a ZIP64
// end-of-central-directory record and locator, and points the ordinary
// EOCD at them via the sentinel record-count/size/offset values, exercising
// the ReadEocd64Locator/ReadEocd64 path (§4.E) regardless of how small the
// central directory actually is.
func (b *archiveBuilder) buildForceZip64(comment string) []byte {
	cdOffset, cdSize := b.writeCentralDirectory()

	zip64EOCDOffset := uint64(b.buf.Len())
	var z64 [directory64EndLen]byte
	binary.LittleEndian.PutUint32(z64[0:4], directory64EndSignature)
	binary.LittleEndian.PutUint64(z64[4:12], uint64(directory64EndLen-12))
	binary.LittleEndian.PutUint16(z64[12:14], 45)
	binary.LittleEndian.PutUint16(z64[14:16], 45)
	binary.LittleEndian.PutUint32(z64[16:20], 0)
	binary.LittleEndian.PutUint32(z64[20:24], 0)
	binary.LittleEndian.PutUint64(z64[24:32], uint64(len(b.entries)))
	binary.LittleEndian.PutUint64(z64[32:40], uint64(len(b.entries)))
	binary.LittleEndian.PutUint64(z64[40:48], cdSize)
	binary.LittleEndian.PutUint64(z64[48:56], cdOffset)
	b.buf.Write(z64[:])

	var loc [directory64LocLen]byte
	binary.LittleEndian.PutUint32(loc[0:4], directory64LocSignature)
	binary.LittleEndian.PutUint32(loc[4:8], 0)
	binary.LittleEndian.PutUint64(loc[8:16], zip64EOCDOffset)
	binary.LittleEndian.PutUint32(loc[16:20], 1)
	b.buf.Write(loc[:])

	var eocd [22]byte
	binary.LittleEndian.PutUint32(eocd[0:4], directoryEndSignature)
	binary.LittleEndian.PutUint16(eocd[4:6], 0)
	binary.LittleEndian.PutUint16(eocd[6:8], 0)
	binary.LittleEndian.PutUint16(eocd[8:10], uint16max)
	binary.LittleEndian.PutUint16(eocd[10:12], uint16max)
	binary.LittleEndian.PutUint32(eocd[12:16], uint32max)
	binary.LittleEndian.PutUint32(eocd[16:20], uint32max)
	binary.LittleEndian.PutUint16(eocd[20:22], uint16(len(comment)))
	b.buf.Write(eocd[:])
	b.buf.WriteString(comment)

	return b.buf.Bytes()
}
