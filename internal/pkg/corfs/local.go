package corfs

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattetti/filebuffer"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/bcongdon/batchcount/internal/pkg/locator"
)

// LocalFileSystem maps containers to directories under Root. An object
// with key "a/b.txt" in container "bucket" lives at Root/bucket/a/b.txt.
type LocalFileSystem struct {
	Root string
}

func (l *LocalFileSystem) path(loc locator.Locator) string {
	return filepath.Join(l.Root, loc.Container, filepath.FromSlash(loc.Key))
}

// ListFiles walks the container directory in lexical order and returns every
// regular file whose key starts with prefix.Key.
func (l *LocalFileSystem) ListFiles(ctx context.Context, prefix locator.Locator) ([]FileInfo, error) {
	files := make([]FileInfo, 0)
	base := filepath.Join(l.Root, prefix.Container)

	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			log.Error(err)
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix.Key) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			Key:  key,
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotExist, "listing %s", prefix)
		}
		return nil, errors.Wrapf(err, "listing %s", prefix)
	}

	return files, nil
}

// OpenReader opens the object at loc for reading.
func (l *LocalFileSystem) OpenReader(ctx context.Context, loc locator.Locator) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(l.path(loc), os.O_RDONLY, 0600)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotExist, "fetching %s", loc)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", loc)
	}
	return file, nil
}

// OpenWriter buffers writes and moves the finished object into place on Close.
func (l *LocalFileSystem) OpenWriter(ctx context.Context, loc locator.Locator) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &localWriter{
		ctx:  ctx,
		path: l.path(loc),
		buf:  filebuffer.New(nil),
	}, nil
}

// Init checks that Root is set.
func (l *LocalFileSystem) Init() error {
	if l.Root == "" {
		return errors.New("local filesystem root is not set")
	}
	return nil
}

type localWriter struct {
	ctx    context.Context
	path   string
	buf    *filebuffer.Buffer
	closed bool
}

func (w *localWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write to closed local writer")
	}
	return w.buf.Write(p)
}

func (w *localWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(w.path)+"-*")
	if err != nil {
		return errors.Wrapf(err, "writing %s", w.path)
	}
	defer os.Remove(tmp.Name())

	w.buf.Seek(0, io.SeekStart)
	if _, err := io.Copy(tmp, w.buf); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing %s", w.path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "writing %s", w.path)
	}
	return os.Rename(tmp.Name(), w.path)
}
