package corfs

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/bcongdon/batchcount/internal/pkg/locator"
)

// FileSystemType is an identifier for supported FileSystems
type FileSystemType int

// Identifiers for supported FileSystemTypes
const (
	Local FileSystemType = iota
	S3
)

func (t FileSystemType) String() string {
	switch t {
	case Local:
		return "local"
	case S3:
		return "s3"
	}
	return "unknown"
}

// ErrNotExist is returned (wrapped) when an object is missing from the store.
var ErrNotExist = errors.New("object does not exist")

// FileSystem provides the object store for plans, inputs and results.
// Every call takes a context and must abort promptly once it is done.
type FileSystem interface {
	// ListFiles returns every object whose key starts with prefix.Key,
	// in the store's listing order. Directory markers are not filtered.
	ListFiles(ctx context.Context, prefix locator.Locator) ([]FileInfo, error)
	OpenReader(ctx context.Context, loc locator.Locator) (io.ReadCloser, error)
	// OpenWriter returns a writer whose content becomes visible only once
	// Close returns without error.
	OpenWriter(ctx context.Context, loc locator.Locator) (io.WriteCloser, error)
	Init() error
}

// FileInfo provides information about an object
type FileInfo struct {
	Key  string // object key, relative to the container
	Size int64  // object size in bytes
}

// Options configures the filesystem created by InitFilesystem.
type Options struct {
	LocalRoot      string // root directory of the Local filesystem
	Region         string
	Endpoint       string
	ForcePathStyle bool
}

// InitFilesystem intializes a filesystem of the given type.
func InitFilesystem(fsType FileSystemType, opts Options) (FileSystem, error) {
	var fs FileSystem
	switch fsType {
	case Local:
		fs = &LocalFileSystem{Root: opts.LocalRoot}
	case S3:
		fs = &S3FileSystem{
			Region:         opts.Region,
			Endpoint:       opts.Endpoint,
			ForcePathStyle: opts.ForcePathStyle,
		}
	default:
		return nil, errors.Errorf("unknown filesystem type %d", fsType)
	}

	if err := fs.Init(); err != nil {
		return nil, errors.Wrapf(err, "initializing %s filesystem", fsType)
	}
	return fs, nil
}

// InferFilesystemType picks the Local filesystem when a local root is
// configured and S3 otherwise.
func InferFilesystemType(opts Options) FileSystemType {
	if opts.LocalRoot != "" {
		return Local
	}
	return S3
}

// ReadAll reads the full content of the object at loc.
func ReadAll(ctx context.Context, fs FileSystem, loc locator.Locator) ([]byte, error) {
	reader, err := fs.OpenReader(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrapf(err, "reading %s", loc)
	}
	return data, nil
}

// WriteAll writes data as the full content of the object at loc.
func WriteAll(ctx context.Context, fs FileSystem, loc locator.Locator, data []byte) error {
	writer, err := fs.OpenWriter(ctx, loc)
	if err != nil {
		return err
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return errors.Wrapf(err, "writing %s", loc)
	}
	return writer.Close()
}
