//go:build unix

package zipfsm

import (
	"context"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// FileSliceSource is a SliceSource backed by an open file, using pread(2)
// directly (via golang.org/x/sys/unix) rather than os.File.ReadAt, so
// concurrent reads at different offsets never contend on the file's shared
// offset the way a naive Read+Seek implementation would.
type FileSliceSource struct {
	f *os.File
}

// NewFileSliceSource wraps f. The caller retains ownership of f and must
// close it once done.
func NewFileSliceSource(f *os.File) *FileSliceSource {
	return &FileSliceSource{f: f}
}

// CursorAt implements SliceSource.
func (s *FileSliceSource) CursorAt(offset uint64) io.Reader {
	return &preadReader{fd: int(s.f.Fd()), offset: int64(offset)}
}

// CursorAtContext implements SliceSourceContext; pread has no notion of
// cancellation, so the context is not consulted mid-read.
func (s *FileSliceSource) CursorAtContext(_ context.Context, offset uint64) io.Reader {
	return s.CursorAt(offset)
}

type preadReader struct {
	fd     int
	offset int64
}

func (r *preadReader) Read(p []byte) (int, error) {
	n, err := unix.Pread(r.fd, p, r.offset)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	r.offset += int64(n)
	return n, nil
}
