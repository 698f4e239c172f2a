package corfs

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/mattetti/filebuffer"
	"github.com/pkg/errors"

	"github.com/bcongdon/batchcount/internal/pkg/locator"
)

// s3Writer buffers an object's content in memory and uploads it in a
// single PUT when closed. Nothing is written to S3 before Close.
type s3Writer struct {
	ctx    context.Context
	client s3iface.S3API
	bucket string
	key    string
	buf    *filebuffer.Buffer
	closed bool
}

func (s *s3Writer) Write(p []byte) (n int, err error) {
	if s.closed {
		return 0, errors.New("write to closed s3 writer")
	}
	n, err = s.buf.Write(p)
	return n, err
}

func (s *s3Writer) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.ctx.Err(); err != nil {
		return err
	}

	s.buf.Seek(0, io.SeekStart)
	input := &s3.PutObjectInput{
		Body:   s.buf,
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	}
	_, err := s.client.PutObjectWithContext(s.ctx, input)
	if err != nil {
		return translateError(s.ctx, err, "writing", locator.Locator{Container: s.bucket, Key: s.key})
	}
	return nil
}
