package zipfsm

import (
	"io"

	"go4.org/readerutil"
)

// MultiPartSliceSource is a SliceSource over several independently held byte
// ranges joined end to end, for archives assembled out of separately stored
// parts (a segmented download, chunks fetched from different backends)
// rather than a single contiguous source. It mirrors the teacher's own
// multiReaderAt part-joining abstraction, turned around from writing to
// reading: the teacher joined parts to build an archive's bytes for
// serving, this joins parts to present a single addressable range for
// decoding.
type MultiPartSliceSource struct {
	joined readerutil.SizeReaderAt
}

// NewMultiPartSliceSource joins parts, in the given order, into a single
// logical byte range addressed by CursorAt. Each part must report its own
// Size via readerutil.SizeReaderAt (io.ReaderAt plus Size() int64); *bytes.Reader
// and *io.SectionReader both satisfy this without adaptation.
func NewMultiPartSliceSource(parts ...readerutil.SizeReaderAt) *MultiPartSliceSource {
	return &MultiPartSliceSource{joined: readerutil.NewMultiReaderAt(parts...)}
}

// Size returns the total size across all joined parts.
func (m *MultiPartSliceSource) Size() uint64 { return uint64(m.joined.Size()) }

// CursorAt implements SliceSource.
func (m *MultiPartSliceSource) CursorAt(offset uint64) io.Reader {
	size := m.joined.Size()
	if int64(offset) >= size {
		return io.NewSectionReader(m.joined, size, 0)
	}
	return io.NewSectionReader(m.joined, int64(offset), size-int64(offset))
}
