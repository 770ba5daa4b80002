package zipfsm

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMultiPartSliceSourceJoinsPartsContiguously(t *testing.T) {
	src := NewMultiPartSliceSource(
		bytes.NewReader([]byte("hello ")),
		bytes.NewReader([]byte("world")),
	)
	require.EqualValues(t, 11, src.Size())

	data, err := io.ReadAll(src.CursorAt(0))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))

	data, err = io.ReadAll(src.CursorAt(6))
	require.NoError(t, err)
	require.Equal(t, "world", string(data))
}

func TestMultiPartSliceSourceCursorAtPastEnd(t *testing.T) {
	src := NewMultiPartSliceSource(bytes.NewReader([]byte("short")))
	data, err := io.ReadAll(src.CursorAt(100))
	require.NoError(t, err)
	require.Empty(t, data)
}

// TestMultiPartSliceSourceDecodesArchiveSplitAcrossParts exercises the full
// ArchiveFSM/EntryFSM path against an archive whose bytes are held in two
// separately addressed parts rather than one contiguous buffer.
func TestMultiPartSliceSourceDecodesArchiveSplitAcrossParts(t *testing.T) {
	b := &archiveBuilder{}
	b.addStoredEntry("a.txt", []byte("hello\n"))
	b.addStoredEntry("b.txt", []byte("world\n"))
	data := b.build("")

	split := len(data) / 2
	src := NewMultiPartSliceSource(
		bytes.NewReader(data[:split]),
		bytes.NewReader(data[split:]),
	)

	ba, err := OpenBlockingArchive(context.Background(), src, src.Size())
	require.NoError(t, err)
	require.Len(t, ba.Archive().Entries(), 2)

	for _, want := range []struct {
		name    string
		content string
	}{
		{"a.txt", "hello\n"},
		{"b.txt", "world\n"},
	} {
		entry, ok := ba.Archive().ByName(want.name)
		require.True(t, ok)
		got, err := io.ReadAll(ba.Open(context.Background(), entry))
		require.NoError(t, err)
		require.Equal(t, want.content, string(got))
	}
}
