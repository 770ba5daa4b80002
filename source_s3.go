package zipfsm

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3GetObjectAPI is the subset of *s3.Client this package needs, so tests
// can supply a fake.
type s3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3SliceSource is a SliceSource backed by ranged GetObject calls against an
// S3 bucket/key, for decoding archives that live in object storage without
// downloading them in full first.
type S3SliceSource struct {
	api    s3GetObjectAPI
	bucket string
	key    string
}

// NewS3SliceSource creates a SliceSource over the given bucket and key.
func NewS3SliceSource(client *s3.Client, bucket, key string) *S3SliceSource {
	return &S3SliceSource{api: client, bucket: bucket, key: key}
}

// CursorAtContext implements SliceSourceContext.
func (s *S3SliceSource) CursorAtContext(ctx context.Context, offset uint64) io.Reader {
	return &s3CursorReader{ctx: ctx, src: s, offset: offset}
}

// CursorAt implements SliceSource using a background context; prefer
// CursorAtContext so a request's cancellation propagates to the S3 call.
func (s *S3SliceSource) CursorAt(offset uint64) io.Reader {
	return s.CursorAtContext(context.Background(), offset)
}

// s3CursorReader issues a single open-ended ranged GetObject (from offset to
// the end of the object) on its first Read and streams the response body
// from then on, so a driver reading an entire entry sequentially needs only
// one underlying range request. The body is closed once a read returns an
// error and is not reopened.
type s3CursorReader struct {
	ctx    context.Context
	src    *S3SliceSource
	offset uint64
	body   io.ReadCloser
}

func (r *s3CursorReader) Read(p []byte) (int, error) {
	if r.body == nil {
		rng := fmt.Sprintf("bytes=%d-", r.offset)
		out, err := r.src.api.GetObject(r.ctx, &s3.GetObjectInput{
			Bucket: aws.String(r.src.bucket),
			Key:    aws.String(r.src.key),
			Range:  aws.String(rng),
		})
		if err != nil {
			return 0, err
		}
		r.body = out.Body
	}
	n, err := r.body.Read(p)
	r.offset += uint64(n)
	if err != nil {
		r.body.Close()
	}
	return n, err
}
