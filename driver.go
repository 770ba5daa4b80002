package zipfsm

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// BlockingArchive drives ArchiveFSM and EntryFSM against a SliceSource using
// ordinary blocking reads, the way this lineage's original Archive served
// entries over ReaderAt. It is the reference driver: a goroutine-per-request
// server can use it directly, and it doubles as the test harness for the
// FSMs themselves.
type BlockingArchive struct {
	src     SliceSource
	archive *Archive
	log     logrus.FieldLogger
}

// OpenBlockingArchive reads and decodes the central directory of a ZIP
// archive of the given total size, backed by src.
func OpenBlockingArchive(ctx context.Context, src SliceSource, size uint64, opts ...Option) (*BlockingArchive, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	fsm := NewArchiveFSM(size, opts...)
	scs := asSliceSourceContext(src)
	for {
		offset, wants := fsm.WantsRead()
		if wants {
			n, err := readInto(ctx, scs, offset, fsm.Space())
			if n > 0 {
				fsm.Fill(n)
			}
			if err != nil {
				if err == io.EOF {
					fsm.Fill(0)
				} else {
					return nil, wrapIO("central directory read", offset, err)
				}
			}
		}

		res, err := fsm.Process()
		if err != nil {
			return nil, err
		}
		if res.Done {
			cfg.logger.WithFields(logrus.Fields{
				"entries": len(res.Archive.Entries()),
				"size":    res.Archive.Size(),
			}).Debug("zipfsm: decoded central directory")
			return &BlockingArchive{src: src, archive: res.Archive, log: cfg.logger}, nil
		}
	}
}

// Archive returns the decoded central directory.
func (ba *BlockingArchive) Archive() *Archive { return ba.archive }

// Open returns a Reader that decodes entry's payload on demand, validating
// its size and checksum as the final bytes are produced.
func (ba *BlockingArchive) Open(ctx context.Context, entry *StoredEntry, opts ...Option) io.Reader {
	fsm := NewEntryFSM(entry.Method, entry.Inner, opts...)
	return &entryReader{
		ctx: ctx,
		fsm: fsm,
		src: asSliceSourceContext(ba.src),
		off: entry.HeaderOffset(),
	}
}

type entryReader struct {
	ctx  context.Context
	fsm  *EntryFSM
	src  SliceSourceContext
	off  uint64
	read uint64
	r    io.Reader
	done bool
}

func (er *entryReader) Read(p []byte) (int, error) {
	if er.done {
		return 0, io.EOF
	}
	if er.r == nil {
		er.r = er.src.CursorAtContext(er.ctx, er.off)
	}
	for {
		if er.fsm.WantsRead() {
			n, err := er.r.Read(er.fsm.Space())
			if n > 0 {
				er.fsm.Fill(n)
				er.read += uint64(n)
			}
			if err != nil {
				if err == io.EOF {
					er.fsm.Fill(0)
				} else {
					return 0, wrapIO("entry read", er.off+er.read, err)
				}
			}
		}

		res, err := er.fsm.Process(p)
		if err != nil {
			return 0, err
		}
		if res.BytesWritten > 0 {
			return res.BytesWritten, nil
		}
		if res.Done {
			er.done = true
			return 0, io.EOF
		}
	}
}

// readInto reads a single chunk starting at offset into p from src, caching
// nothing: callers that read sequentially should prefer holding onto the
// Reader returned by CursorAtContext rather than calling this repeatedly,
// since re-cursoring at the same logical position may re-seek the
// underlying source.
func readInto(ctx context.Context, src SliceSourceContext, offset uint64, p []byte) (int, error) {
	return src.CursorAtContext(ctx, offset).Read(p)
}
