package zipfsm

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// HTTPSliceSource is a SliceSource over a remote resource fetched with
// byte-range GET requests, for archives reachable by URL. It mirrors
// S3SliceSource's lazy, one-range-per-cursor shape but speaks plain HTTP
// Range requests instead of an SDK call.
type HTTPSliceSource struct {
	client *http.Client
	url    string
}

// NewHTTPSliceSource creates a SliceSource that issues ranged GET requests
// against url. A nil client uses http.DefaultClient.
func NewHTTPSliceSource(client *http.Client, url string) *HTTPSliceSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSliceSource{client: client, url: url}
}

// CursorAtContext implements SliceSourceContext.
func (s *HTTPSliceSource) CursorAtContext(ctx context.Context, offset uint64) io.Reader {
	return &httpCursorReader{ctx: ctx, src: s, offset: offset}
}

// CursorAt implements SliceSource using context.Background(); prefer
// CursorAtContext so a request's cancellation reaches the HTTP client.
func (s *HTTPSliceSource) CursorAt(offset uint64) io.Reader {
	return s.CursorAtContext(context.Background(), offset)
}

// httpCursorReader issues a single open-ended ranged GET (from offset to the
// end of the resource) on its first Read and streams the response body from
// then on, matching s3CursorReader's shape: a driver reading an entire entry
// sequentially needs only one underlying range request.
type httpCursorReader struct {
	ctx    context.Context
	src    *HTTPSliceSource
	offset uint64
	body   io.ReadCloser
}

func (r *httpCursorReader) Read(p []byte) (int, error) {
	if r.body == nil {
		req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.src.url, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", r.offset))
		resp, err := r.src.client.Do(req)
		if err != nil {
			return 0, err
		}
		if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return 0, errors.Errorf("zipfsm: GET %s: unexpected status %s", r.src.url, resp.Status)
		}
		r.body = resp.Body
	}
	n, err := r.body.Read(p)
	r.offset += uint64(n)
	if err != nil {
		r.body.Close()
	}
	return n, err
}

// HTTPContentLength issues a HEAD request against url to learn its total
// size, the way a driver must before constructing an ArchiveFSM, which
// needs the stream's total size up front to size its backward scan window.
func HTTPContentLength(ctx context.Context, client *http.Client, url string) (uint64, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("zipfsm: HEAD %s: unexpected status %s", url, resp.Status)
	}
	if resp.ContentLength < 0 {
		return 0, errors.Errorf("zipfsm: HEAD %s: server did not report Content-Length", url)
	}
	return uint64(resp.ContentLength), nil
}
