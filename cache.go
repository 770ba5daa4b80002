package zipfsm

import (
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// directoryCacheSampleSize is how many bytes of the source's head and tail
// feed the content fingerprint, matching the window a reopened archive's
// identity is judged by.
const directoryCacheSampleSize = 4096

// DirectoryCache memoizes decoded Archives keyed by a content fingerprint,
// so that repeatedly opening the same remote archive (by URL, object key,
// or path, combined with its size) doesn't re-read and re-parse its central
// directory every time. It is deliberately a plain in-memory map rather
// than an LSM-backed store: a decoded Archive is small (entry metadata
// only) and the cache's job is to avoid redundant remote directory reads,
// not to persist across process restarts.
type DirectoryCache struct {
	mu      sync.RWMutex
	entries map[uint64]*Archive
}

// NewDirectoryCache creates an empty DirectoryCache.
func NewDirectoryCache() *DirectoryCache {
	return &DirectoryCache{entries: make(map[uint64]*Archive)}
}

// Key computes a content fingerprint for src: size combined with its first
// and last directoryCacheSampleSize bytes, hashed with xxhash. Two sources
// of the same size whose sampled head or tail bytes differ get different
// keys (barring a hash collision); bytes outside those two windows do not
// affect the key.
func (c *DirectoryCache) Key(src SliceSource, size uint64) (uint64, error) {
	h := xxhash.New()

	var sizeBuf [8]byte
	for i := range sizeBuf {
		sizeBuf[i] = byte(size >> (8 * i))
	}
	h.Write(sizeBuf[:])

	head := make([]byte, directoryCacheSampleSize)
	n, err := readFullOrShort(src.CursorAt(0), head)
	if err != nil {
		return 0, err
	}
	h.Write(head[:n])

	tailLen := uint64(directoryCacheSampleSize)
	if size < tailLen {
		tailLen = size
	}
	var tailStart uint64
	if size > tailLen {
		tailStart = size - tailLen
	}
	tail := make([]byte, tailLen)
	n, err = readFullOrShort(src.CursorAt(tailStart), tail)
	if err != nil {
		return 0, err
	}
	h.Write(tail[:n])

	return h.Sum64(), nil
}

// readFullOrShort reads as many bytes as r has to offer into buf, up to
// len(buf), treating both io.EOF and io.ErrUnexpectedEOF as a normal short
// read rather than a failure: a source shorter than the sample window is
// expected whenever the archive itself is smaller than the window.
func readFullOrShort(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	return n, err
}

// Get returns the cached archive for key, if any.
func (c *DirectoryCache) Get(key uint64) (*Archive, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.entries[key]
	return a, ok
}

// Put stores an archive under key, replacing any previous entry.
func (c *DirectoryCache) Put(key uint64, a *Archive) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = a
}
