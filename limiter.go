package zipfsm

// RawEntryLimiter wraps a Buffer, exposing at most a fixed number of
// remaining payload bytes to a Codec, regardless of how much unrelated data
// (the start of a trailing data descriptor, or the next local header) the
// driver has already buffered past the entry's declared compressed size.
type RawEntryLimiter struct {
	buf       *Buffer
	remaining uint64
}

// NewRawEntryLimiter creates a limiter over buf that will yield at most
// size bytes before reporting exhaustion.
func NewRawEntryLimiter(buf *Buffer, size uint64) *RawEntryLimiter {
	return &RawEntryLimiter{buf: buf, remaining: size}
}

// Data returns the readable payload bytes currently buffered, capped at the
// number of bytes still owed to the entry.
func (l *RawEntryLimiter) Data() []byte {
	d := l.buf.Data()
	if uint64(len(d)) > l.remaining {
		d = d[:l.remaining]
	}
	return d
}

// Consume records that n payload bytes were read. It never consumes more
// than Remaining() bytes from the underlying buffer.
func (l *RawEntryLimiter) Consume(n int) {
	if uint64(n) > l.remaining {
		panic("zipfsm: consume beyond remaining entry bytes")
	}
	l.buf.Consume(n)
	l.remaining -= uint64(n)
}

// Remaining returns how many payload bytes have not yet been delivered.
func (l *RawEntryLimiter) Remaining() uint64 { return l.remaining }

// IntoInner hands the underlying buffer back to the caller, preserving any
// bytes read past the payload limit (the start of a data descriptor or the
// next entry's local header).
func (l *RawEntryLimiter) IntoInner() *Buffer { return l.buf }
