package zipfsm

// Buffer is a fixed-capacity, growable byte buffer that separates the
// readable "data" region from the writable "space" region, the way
// oval::Buffer does in the reference sans-I/O implementation this package
// is ported from. Callers fill Space(), advance with Fill(), consume parsed
// bytes with Consume(), and reclaim fragmented room with Shift().
//
// Buffer is not safe for concurrent use; it is owned by exactly one FSM
// state at a time (see the Concurrency & Resource Model section of the
// design notes).
type Buffer struct {
	buf        []byte
	head, tail int
}

// NewBuffer creates a Buffer with the given initial capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, capacity)}
}

// Capacity returns the total number of bytes the buffer can hold without
// growing.
func (b *Buffer) Capacity() int { return len(b.buf) }

// Data returns the currently readable region. The slice is a view into the
// buffer's backing array and is invalidated by the next Shift or Grow.
func (b *Buffer) Data() []byte { return b.buf[b.head:b.tail] }

// Space returns the currently writable tail region. The slice is a view
// into the buffer's backing array and is invalidated by the next Shift or
// Grow.
func (b *Buffer) Space() []byte { return b.buf[b.tail:] }

// AvailableData returns the number of readable bytes.
func (b *Buffer) AvailableData() int { return b.tail - b.head }

// AvailableSpace returns the number of writable bytes.
func (b *Buffer) AvailableSpace() int { return len(b.buf) - b.tail }

// Fill records that n bytes were written into Space().
func (b *Buffer) Fill(n int) {
	if n < 0 || b.tail+n > len(b.buf) {
		panic("zipfsm: Fill beyond buffer capacity")
	}
	b.tail += n
}

// Consume records that n bytes were read from Data().
func (b *Buffer) Consume(n int) {
	if n < 0 || b.head+n > b.tail {
		panic("zipfsm: Consume beyond available data")
	}
	b.head += n
	if b.head == b.tail {
		b.head, b.tail = 0, 0
	}
}

// Shift moves the data region to the start of the backing array, maximizing
// contiguous space for the next Fill. It is a no-op if data already starts
// at offset 0.
func (b *Buffer) Shift() {
	if b.head == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.head:b.tail])
	b.head = 0
	b.tail = n
}

// Grow enlarges the buffer's capacity to at least newCapacity, preserving
// the current data region at offset 0. It is used when a parser reports it
// needs more bytes than the buffer can ever hold without growing (e.g. an
// unusually long filename, extra field, or comment).
func (b *Buffer) Grow(newCapacity int) {
	if newCapacity <= len(b.buf) {
		return
	}
	nb := make([]byte, newCapacity)
	n := copy(nb, b.buf[b.head:b.tail])
	b.buf = nb
	b.head, b.tail = 0, n
}

// ensure grows and/or shifts the buffer so that at least need bytes of
// space are reachable without discarding the current data region.
func (b *Buffer) ensure(need int) {
	if need <= b.AvailableData() {
		return
	}
	if need > b.Capacity() {
		b.Grow(need)
		return
	}
	if need-b.AvailableData() > b.AvailableSpace() {
		b.Shift()
	}
}
