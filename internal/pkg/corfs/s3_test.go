package corfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcongdon/batchcount/internal/pkg/locator"
)

type mockS3Client struct {
	s3iface.S3API
	pages        [][]string
	afterPage    func(int)
	objects      map[string][]byte
	capturedList *s3.ListObjectsV2Input
	puts         int
}

func (m *mockS3Client) ListObjectsV2PagesWithContext(ctx aws.Context, input *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	m.capturedList = input
	for i, keys := range m.pages {
		if err := ctx.Err(); err != nil {
			return awserr.New(request.CanceledErrorCode, "request context canceled", err)
		}
		page := &s3.ListObjectsV2Output{}
		for _, key := range keys {
			page.Contents = append(page.Contents, &s3.Object{
				Key:  aws.String(key),
				Size: aws.Int64(int64(len(key))),
			})
		}
		if !fn(page, i == len(m.pages)-1) {
			return nil
		}
		if m.afterPage != nil {
			m.afterPage(i)
		}
	}
	return nil
}

func (m *mockS3Client) GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, awserr.New(request.CanceledErrorCode, "request context canceled", err)
	}
	data, ok := m.objects[*input.Bucket+"/"+*input.Key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, awserr.New(request.CanceledErrorCode, "request context canceled", err)
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[*input.Bucket+"/"+*input.Key] = data
	m.puts++
	return &s3.PutObjectOutput{}, nil
}

func TestS3ImplementsFileSystem(t *testing.T) {
	var fileSystem FileSystem = &S3FileSystem{}
	assert.NotNil(t, fileSystem)
}

func TestS3ListFiles(t *testing.T) {
	client := &mockS3Client{
		pages: [][]string{
			{"a/", "a/1.txt"},
			{"a/2.txt"},
		},
	}
	fs := NewS3FileSystem(client)

	files, err := fs.ListFiles(context.Background(), locator.MustParse("s3://bucket/a/"))
	assert.Nil(t, err)
	assert.Equal(t, "bucket", *client.capturedList.Bucket)
	assert.Equal(t, "a/", *client.capturedList.Prefix)

	keys := make([]string, 0, len(files))
	for _, file := range files {
		keys = append(keys, file.Key)
	}
	assert.Equal(t, []string{"a/", "a/1.txt", "a/2.txt"}, keys)
	assert.Equal(t, int64(7), files[1].Size)
}

func TestS3ListFilesEmptyPrefix(t *testing.T) {
	client := &mockS3Client{pages: [][]string{{"x"}}}
	fs := NewS3FileSystem(client)

	_, err := fs.ListFiles(context.Background(), locator.MustParse("s3://bucket"))
	assert.Nil(t, err)
	assert.Nil(t, client.capturedList.Prefix)
}

func TestS3ListFilesCancelledMidListing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &mockS3Client{
		pages:     [][]string{{"a/1.txt"}, {"a/2.txt"}, {"a/3.txt"}},
		afterPage: func(int) { cancel() },
	}
	fs := NewS3FileSystem(client)

	files, err := fs.ListFiles(ctx, locator.MustParse("s3://bucket/a/"))
	assert.Nil(t, files)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestS3ReaderWriter(t *testing.T) {
	client := &mockS3Client{}
	fs := NewS3FileSystem(client)
	loc := locator.MustParse("s3://bucket/testobj")
	ctx := context.Background()

	writer, err := fs.OpenWriter(ctx, loc)
	require.Nil(t, err)

	_, err = writer.Write([]byte("foo bar baz"))
	assert.Nil(t, err)
	assert.Equal(t, 0, client.puts)

	assert.Nil(t, writer.Close())
	assert.Equal(t, 1, client.puts)

	// Closing twice does not upload twice
	assert.Nil(t, writer.Close())
	assert.Equal(t, 1, client.puts)

	reader, err := fs.OpenReader(ctx, loc)
	require.Nil(t, err)
	contents, err := io.ReadAll(reader)
	assert.Nil(t, err)
	assert.Equal(t, "foo bar baz", string(contents))
	assert.Nil(t, reader.Close())
}

func TestS3ReaderNotFound(t *testing.T) {
	fs := NewS3FileSystem(&mockS3Client{})

	_, err := fs.OpenReader(context.Background(), locator.MustParse("s3://bucket/missing"))
	assert.True(t, errors.Is(err, ErrNotExist))
}

func TestS3WriterCancelled(t *testing.T) {
	client := &mockS3Client{}
	fs := NewS3FileSystem(client)

	ctx, cancel := context.WithCancel(context.Background())
	writer, err := fs.OpenWriter(ctx, locator.MustParse("s3://bucket/out"))
	require.Nil(t, err)
	_, err = writer.Write([]byte("data"))
	assert.Nil(t, err)

	cancel()
	assert.True(t, errors.Is(writer.Close(), context.Canceled))
	assert.Equal(t, 0, client.puts)
}
