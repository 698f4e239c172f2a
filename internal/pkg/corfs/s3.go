package corfs

import (
	"context"
	"io"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/mattetti/filebuffer"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/bcongdon/batchcount/internal/pkg/locator"
)

// S3FileSystem abstracts AWS S3 as a filesystem
type S3FileSystem struct {
	Region         string
	Endpoint       string
	ForcePathStyle bool

	s3Client s3iface.S3API
}

// NewS3FileSystem wraps an existing S3 client.
func NewS3FileSystem(client s3iface.S3API) *S3FileSystem {
	return &S3FileSystem{s3Client: client}
}

// ListFiles lists all objects under prefix, one page at a time.
func (s *S3FileSystem) ListFiles(ctx context.Context, prefix locator.Locator) ([]FileInfo, error) {
	s3Files := make([]FileInfo, 0)

	params := &s3.ListObjectsV2Input{
		Bucket: aws.String(prefix.Container),
	}
	if prefix.Key != "" {
		params.Prefix = aws.String(prefix.Key)
	}

	pages := 0
	err := s.s3Client.ListObjectsV2PagesWithContext(ctx, params,
		func(page *s3.ListObjectsV2Output, _ bool) bool {
			if ctx.Err() != nil {
				return false
			}
			pages++
			for _, object := range page.Contents {
				s3Files = append(s3Files, FileInfo{
					Key:  aws.StringValue(object.Key),
					Size: aws.Int64Value(object.Size),
				})
			}
			return true
		})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, translateError(ctx, err, "listing", prefix)
	}

	log.Debugf("Listed %d objects under %s in %d pages", len(s3Files), prefix, pages)
	return s3Files, nil
}

// OpenReader opens the object at loc for reading.
func (s *S3FileSystem) OpenReader(ctx context.Context, loc locator.Locator) (io.ReadCloser, error) {
	params := &s3.GetObjectInput{
		Bucket: aws.String(loc.Container),
		Key:    aws.String(loc.Key),
	}
	output, err := s.s3Client.GetObjectWithContext(ctx, params)
	if err != nil {
		return nil, translateError(ctx, err, "fetching", loc)
	}
	return output.Body, nil
}

// OpenWriter buffers writes and uploads them to loc on Close.
func (s *S3FileSystem) OpenWriter(ctx context.Context, loc locator.Locator) (io.WriteCloser, error) {
	writer := &s3Writer{
		ctx:    ctx,
		client: s.s3Client,
		bucket: loc.Container,
		key:    loc.Key,
		buf:    filebuffer.New(nil),
	}
	return writer, nil
}

// Init initializes the S3 client from the shared AWS configuration.
func (s *S3FileSystem) Init() error {
	if s.s3Client != nil {
		return nil
	}

	os.Setenv("AWS_SDK_LOAD_CONFIG", "true")
	cfg := aws.NewConfig()
	if s.Region != "" {
		cfg = cfg.WithRegion(s.Region)
	}
	if s.Endpoint != "" {
		cfg = cfg.WithEndpoint(s.Endpoint)
	}
	if s.ForcePathStyle {
		cfg = cfg.WithS3ForcePathStyle(true)
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return err
	}
	s.s3Client = s3.New(sess)
	return nil
}

// translateError prefers the context's error over the SDK's cancellation
// error and maps missing keys and buckets to ErrNotExist.
func translateError(ctx context.Context, err error, op string, loc locator.Locator) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return errors.Wrapf(ErrNotExist, "%s %s: %s", op, loc, aerr.Message())
		}
	}
	return errors.Wrapf(err, "%s %s", op, loc)
}
