package corfs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcongdon/batchcount/internal/pkg/locator"
)

func TestLocalImplementsFileSystem(t *testing.T) {
	backend := LocalFileSystem{}
	var fileSystem FileSystem
	fileSystem = &backend

	assert.NotNil(t, fileSystem)
}

func writeLocalFile(t *testing.T, root, rel, contents string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.Nil(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.Nil(t, os.WriteFile(path, []byte(contents), 0644))
}

func TestLocalListFiles(t *testing.T) {
	root := t.TempDir()
	writeLocalFile(t, root, "bucket/a/1.txt", "one")
	writeLocalFile(t, root, "bucket/a/2.txt", "two!")
	writeLocalFile(t, root, "bucket/b/3.txt", "three")

	fs := &LocalFileSystem{Root: root}

	files, err := fs.ListFiles(context.Background(), locator.MustParse("s3://bucket/a/"))
	assert.Nil(t, err)
	assert.Equal(t, []FileInfo{
		{Key: "a/1.txt", Size: 3},
		{Key: "a/2.txt", Size: 4},
	}, files)

	files, err = fs.ListFiles(context.Background(), locator.MustParse("s3://bucket"))
	assert.Nil(t, err)
	assert.Len(t, files, 3)
}

func TestLocalListMissingContainer(t *testing.T) {
	fs := &LocalFileSystem{Root: t.TempDir()}

	_, err := fs.ListFiles(context.Background(), locator.MustParse("s3://missing/"))
	assert.True(t, errors.Is(err, ErrNotExist))
}

func TestLocalListCancelled(t *testing.T) {
	root := t.TempDir()
	writeLocalFile(t, root, "bucket/a/1.txt", "one")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fs := &LocalFileSystem{Root: root}
	files, err := fs.ListFiles(ctx, locator.MustParse("s3://bucket/"))
	assert.Nil(t, files)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLocalReaderWriter(t *testing.T) {
	fs := &LocalFileSystem{Root: t.TempDir()}
	loc := locator.MustParse("s3://bucket/additionalFolder/tmpfile")
	ctx := context.Background()

	writer, err := fs.OpenWriter(ctx, loc)
	require.Nil(t, err)

	n, err := writer.Write([]byte("foo bar baz"))
	assert.Equal(t, 11, n)
	assert.Nil(t, err)

	// Nothing is visible before Close
	_, err = fs.OpenReader(ctx, loc)
	assert.True(t, errors.Is(err, ErrNotExist))

	assert.Nil(t, writer.Close())

	reader, err := fs.OpenReader(ctx, loc)
	require.Nil(t, err)
	contents, err := io.ReadAll(reader)
	assert.Nil(t, err)
	assert.Equal(t, "foo bar baz", string(contents))
	assert.Nil(t, reader.Close())
}

func TestLocalWriterCancelled(t *testing.T) {
	fs := &LocalFileSystem{Root: t.TempDir()}
	loc := locator.MustParse("s3://bucket/out.txt")

	ctx, cancel := context.WithCancel(context.Background())
	writer, err := fs.OpenWriter(ctx, loc)
	require.Nil(t, err)
	_, err = writer.Write([]byte("partial"))
	assert.Nil(t, err)

	cancel()
	assert.True(t, errors.Is(writer.Close(), context.Canceled))

	_, err = fs.OpenReader(context.Background(), loc)
	assert.True(t, errors.Is(err, ErrNotExist))
}

func TestLocalReadWriteAll(t *testing.T) {
	fs := &LocalFileSystem{Root: t.TempDir()}
	loc := locator.MustParse("s3://bucket/x/y.json")
	ctx := context.Background()

	assert.Nil(t, WriteAll(ctx, fs, loc, []byte(`{"a":1}`)))

	data, err := ReadAll(ctx, fs, loc)
	assert.Nil(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}

func TestLocalInit(t *testing.T) {
	assert.NotNil(t, (&LocalFileSystem{}).Init())
	assert.Nil(t, (&LocalFileSystem{Root: "."}).Init())
}
