package zipfsm

import (
	"bytes"
	"context"
	"io"
)

// SliceSourceContext is how a driver exposes random-access byte ranges of
// the underlying archive to this package's callers, with a context for
// cancellation and tracing on each access. It is the read-direction
// counterpart of this lineage's ReaderAt abstraction: instead of filling a
// caller-provided buffer, it hands back a Reader positioned at offset.
type SliceSourceContext interface {
	// CursorAtContext returns a Reader that yields bytes starting at the
	// given absolute offset, through to the end of the underlying data.
	CursorAtContext(ctx context.Context, offset uint64) io.Reader
}

// SliceSource is SliceSourceContext without a context, for sources that
// have no need of one (an in-memory byte slice, for instance).
type SliceSource interface {
	// CursorAt returns a Reader that yields bytes starting at the given
	// absolute offset, through to the end of the underlying data.
	CursorAt(offset uint64) io.Reader
}

// ignoreSourceContext adapts a SliceSource to SliceSourceContext by
// discarding the context, mirroring this lineage's ignoreContext adapter.
type ignoreSourceContext struct {
	s SliceSource
}

func (a ignoreSourceContext) CursorAtContext(_ context.Context, offset uint64) io.Reader {
	return a.s.CursorAt(offset)
}

// withSourceContext adapts a SliceSourceContext bound to a fixed context
// back into a plain SliceSource, mirroring this lineage's withContext
// adapter. As with withContext, the stored context should only ever live
// for the duration of a single request.
type withSourceContext struct {
	ctx context.Context
	s   SliceSourceContext
}

func (w withSourceContext) CursorAt(offset uint64) io.Reader {
	return w.s.CursorAtContext(w.ctx, offset)
}

// asSliceSourceContext adapts src to SliceSourceContext, using its native
// CursorAtContext method if it has one.
func asSliceSourceContext(src SliceSource) SliceSourceContext {
	if v, ok := src.(SliceSourceContext); ok {
		return v
	}
	return ignoreSourceContext{s: src}
}

// MemorySliceSource is a SliceSource over an in-memory byte slice, useful
// for tests and for small archives that are already fully loaded.
type MemorySliceSource struct {
	data []byte
}

// NewMemorySliceSource creates a MemorySliceSource over data. The slice is
// not copied; callers must not mutate it afterwards.
func NewMemorySliceSource(data []byte) *MemorySliceSource {
	return &MemorySliceSource{data: data}
}

// CursorAt implements SliceSource.
func (m *MemorySliceSource) CursorAt(offset uint64) io.Reader {
	if offset >= uint64(len(m.data)) {
		return bytes.NewReader(nil)
	}
	return bytes.NewReader(m.data[offset:])
}

// CursorAtContext implements SliceSourceContext; context is ignored since
// reading from memory never blocks.
func (m *MemorySliceSource) CursorAtContext(_ context.Context, offset uint64) io.Reader {
	return m.CursorAt(offset)
}

// Size returns the number of bytes backing this source.
func (m *MemorySliceSource) Size() uint64 { return uint64(len(m.data)) }
