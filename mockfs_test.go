package batchcount

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/bcongdon/batchcount/internal/pkg/corfs"
	"github.com/bcongdon/batchcount/internal/pkg/locator"
)

// mockFs is an in-memory corfs.FileSystem. Listing returns keys in
// lexical order like S3.
type mockFs struct {
	mut     sync.Mutex
	objects map[string][]byte
	reads   []string
	puts    int

	listErr    error
	onList     func()
	failReads  map[string]error
	failWrites error
}

func newMockFs() *mockFs {
	return &mockFs{
		objects:   make(map[string][]byte),
		failReads: make(map[string]error),
	}
}

func (m *mockFs) put(loc string, contents string) {
	l := locator.MustParse(loc)
	m.objects[l.Container+"/"+l.Key] = []byte(contents)
}

func (m *mockFs) get(loc string) (string, bool) {
	l := locator.MustParse(loc)
	m.mut.Lock()
	defer m.mut.Unlock()
	data, ok := m.objects[l.Container+"/"+l.Key]
	return string(data), ok
}

func (m *mockFs) ListFiles(ctx context.Context, prefix locator.Locator) ([]corfs.FileInfo, error) {
	if m.onList != nil {
		m.onList()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.listErr != nil {
		return nil, m.listErr
	}

	m.mut.Lock()
	defer m.mut.Unlock()
	files := make([]corfs.FileInfo, 0)
	for name, data := range m.objects {
		container, key := name[:strings.Index(name, "/")], name[strings.Index(name, "/")+1:]
		if container == prefix.Container && strings.HasPrefix(key, prefix.Key) {
			files = append(files, corfs.FileInfo{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	return files, nil
}

func (m *mockFs) OpenReader(ctx context.Context, loc locator.Locator) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mut.Lock()
	defer m.mut.Unlock()
	name := loc.Container + "/" + loc.Key
	m.reads = append(m.reads, name)
	if err, ok := m.failReads[name]; ok {
		return nil, err
	}
	data, ok := m.objects[name]
	if !ok {
		return nil, errors.Wrapf(corfs.ErrNotExist, "fetching %s", loc)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockFs) OpenWriter(ctx context.Context, loc locator.Locator) (io.WriteCloser, error) {
	return &mockWriter{ctx: ctx, fs: m, name: loc.Container + "/" + loc.Key}, nil
}

func (m *mockFs) Init() error { return nil }

type mockWriter struct {
	bytes.Buffer
	ctx  context.Context
	fs   *mockFs
	name string
}

func (w *mockWriter) Close() error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	w.fs.mut.Lock()
	defer w.fs.mut.Unlock()
	if w.fs.failWrites != nil {
		return w.fs.failWrites
	}
	w.fs.objects[w.name] = append([]byte(nil), w.Bytes()...)
	w.fs.puts++
	return nil
}
