package zipfsm

import (
	"bytes"
	"compress/flate"
	"io"

	"github.com/pkg/errors"
)

// Source is what a Codec reads compressed bytes from: a view of whatever
// payload bytes the driver has buffered so far for the current entry.
type Source interface {
	// Data returns the currently available, not-yet-consumed input bytes.
	Data() []byte
	// Consume advances past n bytes of Data().
	Consume(n int)
	// Remaining reports how many input bytes the source still owes,
	// including bytes not yet buffered.
	Remaining() uint64
}

// Codec decodes one entry's payload incrementally. A single Decode call
// consumes whatever is currently available from src and writes as many
// decoded bytes as fit into out. The second return value reports whether
// the codec will never produce further output; EntryFSM uses it together
// with a zero bytesWritten to decide the payload has been fully delivered.
//
// Only Store and Deflate are implemented. EntryFSM picks its codec through
// newCodecForMethod, a fixed switch over those two methods; there is no
// hook for registering other codecs (Bzip2, Zstd, LZMA), and any other
// method is reported as unsupported.
type Codec interface {
	Decode(src Source, out []byte) (bytesWritten int, done bool, err error)
}

func newCodecForMethod(method uint16) (Codec, error) {
	switch method {
	case Store:
		return storeCodec{}, nil
	case Deflate:
		return &flateCodec{}, nil
	default:
		return nil, errUnsupportedMethod(method)
	}
}

// storeCodec implements Codec for the Store (uncompressed) method: a read
// of N bytes from the source produces N bytes of output.
type storeCodec struct{}

func (storeCodec) Decode(src Source, out []byte) (int, bool, error) {
	data := src.Data()
	n := copy(out, data)
	src.Consume(n)
	done := src.Remaining() == 0 && len(src.Data()) == 0
	return n, done, nil
}

// flateCodec implements Codec for the Deflate method on top of
// compress/flate. The core FSMs are synchronous and never block or spawn
// goroutines (see the Concurrency & Resource Model design notes), which
// rules out driving flate.Reader directly against a pull-based Source: its
// Read would need to block mid-stream waiting for bytes that haven't
// arrived yet. flateCodec instead buffers the full compressed payload as it
// arrives, then performs a single one-shot flate.NewReader/io.ReadAll
// decode once the source reports no remaining input, and serves the
// decoded bytes incrementally afterwards. This trades streaming for a
// synchronous-only implementation; Store remains fully streaming. A
// streaming incremental Deflate decoder would need either goroutine+pipe
// plumbing or a from-scratch incremental inflate, both out of scope here.
type flateCodec struct {
	compressed []byte
	output     []byte
	outPos     int
	decoded    bool
}

func (c *flateCodec) Decode(src Source, out []byte) (int, bool, error) {
	if !c.decoded {
		if data := src.Data(); len(data) > 0 {
			c.compressed = append(c.compressed, data...)
			src.Consume(len(data))
		}
		if src.Remaining() > 0 {
			return 0, false, nil
		}
		fr := flate.NewReader(bytes.NewReader(c.compressed))
		output, err := io.ReadAll(fr)
		closeErr := fr.Close()
		if err != nil {
			return 0, true, errors.Wrap(err, "zipfsm: deflate decode failed")
		}
		if closeErr != nil {
			return 0, true, errors.Wrap(closeErr, "zipfsm: deflate decode failed")
		}
		c.output = output
		c.decoded = true
	}
	n := copy(out, c.output[c.outPos:])
	c.outPos += n
	done := c.outPos >= len(c.output)
	return n, done, nil
}
