// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfsm

import (
	"io"

	"github.com/pkg/errors"
)

type archiveState int

const (
	archiveStateReadEocd archiveState = iota
	archiveStateReadEocd64Locator
	archiveStateReadEocd64
	archiveStateReadCentralDirectory
	archiveStateDone
)

// maxEOCDWindow bounds the backward scan for the end-of-central-directory
// record: the fixed 22-byte record plus the largest possible comment.
const maxEOCDWindow = directoryEndLen + uint16max

// ArchiveFSMResult is the outcome of a single ArchiveFSM.Process call.
type ArchiveFSMResult struct {
	// Archive is non-nil once Done is true.
	Archive *Archive
	// Done reports whether the central directory has been fully decoded.
	Done bool
}

// ArchiveFSM locates and decodes a ZIP archive's end-of-central-directory
// record (and its ZIP64 companions, if present) and its central directory,
// given only the total size of the byte stream.
//
// ArchiveFSM never performs I/O itself. A driver repeatedly calls WantsRead
// to learn where to read from next, Space and Fill to hand over bytes, and
// Process to advance decoding.
type ArchiveFSM struct {
	size uint64
	cfg  Config

	state       archiveState
	buf         *Buffer
	windowStart uint64
	needed      int
	eofHit      bool

	eocd          *eocdFields
	eocdAbsOffset uint64
	cdOffset      uint64
	cdSize        uint64
	cdRecords     uint64
	zip64         bool

	cdConsumed uint64
	entries    []*StoredEntry
}

// NewArchiveFSM creates an ArchiveFSM for a byte stream of the given total
// size.
func NewArchiveFSM(size uint64, opts ...Option) *ArchiveFSM {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	window := uint64(maxEOCDWindow)
	if window > size {
		window = size
	}
	windowStart := size - window

	fsm := &ArchiveFSM{
		size:        size,
		cfg:         cfg,
		state:       archiveStateReadEocd,
		windowStart: windowStart,
		needed:      int(window),
	}
	fsm.buf = NewBuffer(fsm.needed)
	return fsm
}

// WantsRead reports the absolute offset the driver should read from next,
// and whether ArchiveFSM actually needs more bytes right now.
func (f *ArchiveFSM) WantsRead() (uint64, bool) {
	if f.state == archiveStateDone {
		return 0, false
	}
	return f.windowStart + uint64(f.buf.AvailableData()), f.buf.AvailableData() < f.needed
}

// Space returns where the driver should write freshly read bytes.
func (f *ArchiveFSM) Space() []byte { return f.buf.Space() }

// Fill records that n bytes were written into Space(). Fill(0) records
// end-of-stream at the current read position.
func (f *ArchiveFSM) Fill(n int) {
	if n == 0 {
		f.eofHit = true
		return
	}
	f.buf.Fill(n)
}

// startReadAt re-anchors the FSM to begin reading sequentially from offset,
// discarding any buffered bytes left over from the previous state (the
// ranges involved - the EOCD window, the locator, the ZIP64 EOCD, and the
// central directory - are not contiguous with one another).
func (f *ArchiveFSM) startReadAt(offset uint64, minLen int) {
	f.windowStart = offset
	f.needed = minLen
	f.eofHit = false
	f.buf = NewBuffer(minLen)
}

// prepareForMore records that the current parse needs at least need bytes
// and grows/shifts the buffer so that much room is reachable.
func (f *ArchiveFSM) prepareForMore(need int) {
	f.needed = need
	f.buf.ensure(need)
}

// Process advances the state machine as far as currently buffered bytes
// allow. It returns as soon as it needs more input or has reached Done.
func (f *ArchiveFSM) Process() (ArchiveFSMResult, error) {
	for {
		switch f.state {
		case archiveStateReadEocd:
			idx := locateEOCD(f.buf.Data(), f.windowStart, f.size)
			if idx < 0 {
				if f.eofHit || f.buf.AvailableData() >= f.needed {
					return ArchiveFSMResult{}, ErrNotAZipFile
				}
				return ArchiveFSMResult{}, nil
			}
			eocd, _, err := parseEOCD(f.buf.Data()[idx:])
			if err != nil {
				if _, ok := isNeedMore(err); ok {
					if f.eofHit {
						return ArchiveFSMResult{}, ErrInvalidEocd
					}
					return ArchiveFSMResult{}, nil
				}
				return ArchiveFSMResult{}, err
			}
			f.eocd = eocd
			f.eocdAbsOffset = f.windowStart + uint64(idx)

			if eocd.cdOffset == uint32max || eocd.totalRecords == uint16max || eocd.cdSize == uint32max {
				if f.eocdAbsOffset < directory64LocLen {
					return ArchiveFSMResult{}, ErrInvalidEocd
				}
				f.startReadAt(f.eocdAbsOffset-directory64LocLen, directory64LocLen)
				f.state = archiveStateReadEocd64Locator
				continue
			}

			if eocd.diskNumber != 0 || eocd.diskWithCD != 0 {
				return ArchiveFSMResult{}, ErrMultiDisk
			}
			f.cdOffset = uint64(eocd.cdOffset)
			f.cdSize = uint64(eocd.cdSize)
			f.cdRecords = uint64(eocd.totalRecords)
			f.startReadAt(f.cdOffset, directoryHeaderLen)
			f.state = archiveStateReadCentralDirectory

		case archiveStateReadEocd64Locator:
			loc, n, err := parseZip64Locator(f.buf.Data())
			if err != nil {
				if need, ok := isNeedMore(err); ok {
					if f.eofHit {
						return ArchiveFSMResult{}, errors.Wrap(io.ErrUnexpectedEOF, "zipfsm: truncated zip64 end of central directory locator")
					}
					f.prepareForMore(need)
					return ArchiveFSMResult{}, nil
				}
				return ArchiveFSMResult{}, err
			}
			f.buf.Consume(n)
			if loc.totalDisks > 1 || loc.diskWithZip64EOCD != 0 {
				return ArchiveFSMResult{}, ErrMultiDisk
			}
			f.startReadAt(loc.zip64EOCDOffset, directory64EndLen)
			f.state = archiveStateReadEocd64

		case archiveStateReadEocd64:
			z64, n, err := parseZip64EOCD(f.buf.Data())
			if err != nil {
				if need, ok := isNeedMore(err); ok {
					if f.eofHit {
						return ArchiveFSMResult{}, errors.Wrap(io.ErrUnexpectedEOF, "zipfsm: truncated zip64 end of central directory record")
					}
					f.prepareForMore(need)
					return ArchiveFSMResult{}, nil
				}
				return ArchiveFSMResult{}, err
			}
			f.buf.Consume(n)
			if z64.diskNumber != 0 || z64.diskWithCD != 0 {
				return ArchiveFSMResult{}, ErrMultiDisk
			}
			f.zip64 = true
			f.cdOffset = z64.cdOffset
			f.cdSize = z64.cdSize
			f.cdRecords = z64.totalRecords
			// A zero ZIP64 field means "use the EOCD value"; only the
			// sentinel-triggering fields are ever actually zero here in
			// practice, but guard defensively per the design notes.
			if f.cdOffset == 0 && f.eocd.cdOffset != uint32max {
				f.cdOffset = uint64(f.eocd.cdOffset)
			}
			if f.cdRecords == 0 && f.eocd.totalRecords != uint16max {
				f.cdRecords = uint64(f.eocd.totalRecords)
			}
			if f.cdSize == 0 && f.eocd.cdSize != uint32max {
				f.cdSize = uint64(f.eocd.cdSize)
			}
			f.startReadAt(f.cdOffset, directoryHeaderLen)
			f.state = archiveStateReadCentralDirectory

		case archiveStateReadCentralDirectory:
			if uint64(len(f.entries)) >= f.cdRecords || f.cdConsumed >= f.cdSize {
				f.state = archiveStateDone
				continue
			}
			if uint64(len(f.entries)) >= f.cfg.maxCentralDirectoryRecords {
				return ArchiveFSMResult{}, errors.Errorf("zipfsm: central directory declares more than %d records", f.cfg.maxCentralDirectoryRecords)
			}
			chf, n, err := parseCentralDirectoryHeader(f.buf.Data())
			if err != nil {
				if need, ok := isNeedMore(err); ok {
					if f.eofHit {
						return ArchiveFSMResult{}, errors.Wrap(io.ErrUnexpectedEOF, "zipfsm: truncated central directory")
					}
					f.prepareForMore(need)
					return ArchiveFSMResult{}, nil
				}
				return ArchiveFSMResult{}, err
			}
			f.buf.Consume(n)
			f.windowStart += uint64(n)
			f.cdConsumed += uint64(n)

			entry, err := buildStoredEntry(chf)
			if err != nil {
				return ArchiveFSMResult{}, err
			}
			f.entries = append(f.entries, entry)
			f.needed = directoryHeaderLen

		case archiveStateDone:
			comment := ""
			if f.eocd != nil {
				comment = decodeComment(f.eocd.comment)
			}
			return ArchiveFSMResult{
				Done: true,
				Archive: &Archive{
					size:    f.size,
					comment: comment,
					entries: f.entries,
				},
			}, nil
		}
	}
}

// buildStoredEntry decodes a central directory header into a StoredEntry,
// applying ZIP64 extra-field upgrades where the fixed-width fields carry
// their sentinel value.
func buildStoredEntry(chf *centralDirHeaderFields) (*StoredEntry, error) {
	need := zip64Upgrade{
		needUncompressed: chf.uncompressedSize == uint32max,
		needCompressed:   chf.compressedSize == uint32max,
		needOffset:       chf.localHeaderOffset == uint32max,
		needDiskStart:    chf.diskNumberStart == uint16max,
	}

	uncompressed := uint64(chf.uncompressedSize)
	compressed := uint64(chf.compressedSize)
	offset := uint64(chf.localHeaderOffset)
	isZip64 := false

	if need.any() {
		extra, ok := findExtraField(chf.extra, zip64ExtraID)
		if !ok {
			return nil, errors.Wrap(ErrInvalidCentralHeader, "zipfsm: missing zip64 extra field")
		}
		u, c, o, _, err := parseZip64Extra(extra, need)
		if err != nil {
			return nil, err
		}
		if need.needUncompressed {
			uncompressed = u
		}
		if need.needCompressed {
			compressed = c
		}
		if need.needOffset {
			offset = o
		}
		isZip64 = true
	}

	isUTF8 := chf.flags&0x800 != 0
	return &StoredEntry{
		Name:           decodeZipString(chf.name, isUTF8),
		Comment:        decodeZipString(chf.comment, isUTF8),
		Modified:       msDosTimeToTime(chf.modDate, chf.modTime),
		CreatorVersion: chf.creatorVersion,
		Method:         chf.method,
		ExternalAttrs:  chf.externalAttrs,
		Inner: StoredEntryInner{
			CompressedSize:   compressed,
			UncompressedSize: uncompressed,
			CRC32:            chf.crc32,
			HeaderOffset:     offset,
			IsZip64:          isZip64,
		},
	}, nil
}
