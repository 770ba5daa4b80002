package zipfsm

import (
	"hash"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
)

type entryState int

const (
	entryStateReadLocalHeader entryState = iota
	entryStateReadData
	entryStateReadDataDescriptor
	entryStateValidate
	entryStateDone
)

// EntryFSMResult is the outcome of a single EntryFSM.Process call.
type EntryFSMResult struct {
	// BytesWritten is how many decoded bytes were written into the output
	// slice passed to Process.
	BytesWritten int
	// Done reports whether the entry has been fully decoded and validated.
	Done bool
}

const initialEntryBufferSize = 4096

// EntryFSM decodes a single ZIP entry: its local file header, its
// (optionally compressed) payload, an optional trailing data descriptor,
// and a final CRC/size validation. It is single-use: construct a new
// EntryFSM per entry.
//
// EntryFSM never performs I/O itself. A driver repeatedly calls WantsRead,
// Space, and Fill to supply bytes read sequentially starting at the
// entry's header offset, then calls Process to advance decoding and
// receive decoded bytes.
type EntryFSM struct {
	method uint16
	inner  StoredEntryInner
	cfg    Config

	state  entryState
	buf    *Buffer
	needed int
	eof    bool

	flags              uint16
	localCRC32         uint32
	localCompressed    uint64
	localUncompressed  uint64
	lim                *RawEntryLimiter
	codec              Codec
	hasher             hash.Hash32
	counter            uint64
	descriptor         *dataDescriptorFields
}

// NewEntryFSM creates an EntryFSM for the entry described by inner, which
// will be decoded using the compression method tag.
func NewEntryFSM(method uint16, inner StoredEntryInner, opts ...Option) *EntryFSM {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &EntryFSM{
		method: method,
		inner:  inner,
		cfg:    cfg,
		state:  entryStateReadLocalHeader,
		buf:    NewBuffer(initialEntryBufferSize),
		needed: 4,
	}
}

// WantsRead reports whether the driver should read more bytes (at the next
// sequential offset) before calling Process again.
func (f *EntryFSM) WantsRead() bool {
	switch f.state {
	case entryStateDone:
		return false
	case entryStateReadData:
		return !f.eof && f.lim != nil && f.lim.Remaining() > 0 && len(f.lim.Data()) == 0
	default:
		return f.buf.AvailableData() < f.needed
	}
}

// Space returns where the driver should write freshly read bytes.
func (f *EntryFSM) Space() []byte { return f.buf.Space() }

// Fill records that n bytes were written into Space(). A driver that
// observes end-of-stream from its source (a zero-byte read) should call
// Fill(0) to record it; EntryFSM then surfaces an unexpected-EOF error the
// next time it needs bytes that will never arrive.
func (f *EntryFSM) Fill(n int) {
	if n == 0 {
		f.eof = true
		return
	}
	f.buf.Fill(n)
}

func (f *EntryFSM) prepareForMore(need int) {
	f.needed = need
	f.buf.ensure(need)
}

// Process advances the state machine as far as currently buffered bytes
// allow, writing decoded payload bytes into out during ReadData. It returns
// as soon as it has either produced bytes, needs more input, or reached
// Done.
func (f *EntryFSM) Process(out []byte) (EntryFSMResult, error) {
	for {
		switch f.state {
		case entryStateReadLocalHeader:
			hdr, n, err := parseLocalFileHeader(f.buf.Data())
			if err != nil {
				if need, ok := isNeedMore(err); ok {
					if f.eof {
						return EntryFSMResult{}, errors.Wrap(io.ErrUnexpectedEOF, "zipfsm: truncated local file header")
					}
					f.prepareForMore(need)
					return EntryFSMResult{}, nil
				}
				return EntryFSMResult{}, err
			}
			f.buf.Consume(n)
			f.flags = hdr.flags
			f.localCRC32 = hdr.crc32
			f.localCompressed = uint64(hdr.compressedSize)
			f.localUncompressed = uint64(hdr.uncompressedSize)

			codec, err := newCodecForMethod(f.method)
			if err != nil {
				return EntryFSMResult{}, err
			}
			f.codec = codec
			f.lim = NewRawEntryLimiter(f.buf, f.inner.CompressedSize)
			f.hasher = crc32.NewIEEE()
			f.counter = 0
			f.needed = 0
			f.state = entryStateReadData

		case entryStateReadData:
			if len(f.lim.Data()) == 0 && !f.eof && f.lim.Remaining() > 0 {
				return EntryFSMResult{}, nil
			}
			n, done, err := f.codec.Decode(f.lim, out)
			if err != nil {
				return EntryFSMResult{}, err
			}
			if n > 0 {
				f.hasher.Write(out[:n])
				f.counter += uint64(n)
				return EntryFSMResult{BytesWritten: n}, nil
			}
			if !done {
				if f.eof {
					return EntryFSMResult{}, errors.Wrap(io.ErrUnexpectedEOF, "zipfsm: truncated entry payload")
				}
				return EntryFSMResult{}, nil
			}

			f.buf = f.lim.IntoInner()
			if f.flags&0x8 != 0 {
				f.needed = 4
				f.state = entryStateReadDataDescriptor
			} else {
				f.descriptor = nil
				f.state = entryStateValidate
			}

		case entryStateReadDataDescriptor:
			dd, n, err := parseDataDescriptor(f.buf.Data(), f.inner.IsZip64)
			if err != nil {
				if need, ok := isNeedMore(err); ok {
					if f.eof {
						return EntryFSMResult{}, errors.Wrap(io.ErrUnexpectedEOF, "zipfsm: truncated data descriptor")
					}
					f.prepareForMore(need)
					return EntryFSMResult{}, nil
				}
				return EntryFSMResult{}, err
			}
			f.buf.Consume(n)
			f.descriptor = dd
			f.state = entryStateValidate

		case entryStateValidate:
			if err := f.validate(); err != nil {
				return EntryFSMResult{}, err
			}
			f.state = entryStateDone
			return EntryFSMResult{Done: true}, nil

		case entryStateDone:
			return EntryFSMResult{Done: true}, nil
		}
	}
}

// validate compares the observed size and checksum against the declared
// values, preferring the central directory's values, then the data
// descriptor's, then the local header's — see the Validate state in the
// design notes for the rationale.
func (f *EntryFSM) validate() error {
	expectedCRC := f.inner.CRC32
	if expectedCRC == 0 {
		if f.descriptor != nil {
			expectedCRC = f.descriptor.crc32
		} else {
			expectedCRC = f.localCRC32
		}
	}

	expectedSize := f.inner.UncompressedSize
	if expectedSize == 0 {
		if f.descriptor != nil {
			expectedSize = f.descriptor.uncompressedSize
		} else {
			expectedSize = f.localUncompressed
		}
	}

	if expectedSize != f.counter {
		return &WrongSizeError{Expected: expectedSize, Actual: f.counter}
	}
	// A zero expected CRC means "not provided" (legacy behavior) and is
	// skipped rather than compared.
	if expectedCRC != 0 && expectedCRC != f.hasher.Sum32() {
		return &WrongChecksumError{Expected: expectedCRC, Actual: f.hasher.Sum32()}
	}
	return nil
}
