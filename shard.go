package batchcount

import (
	"bytes"
	"context"
	"runtime"

	humanize "github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/bcongdon/batchcount/internal/pkg/corfs"
	"github.com/bcongdon/batchcount/internal/pkg/locator"
)

// ShardResult describes one processed shard.
type ShardResult struct {
	Plan         locator.Locator
	Index        int
	Item         string
	Source       locator.Locator
	Destination  locator.Locator
	BytesRead    int64
	BytesWritten int64
	Tokens       int // distinct tokens written
}

// ShardProcessor counts the words of the single input object selected by
// a shard index and writes the ranked counts to the destination.
type ShardProcessor struct {
	fs      corfs.FileSystem
	workers int
	plans   *lru.Cache
}

// ShardOption configures a ShardProcessor
type ShardOption func(*ShardProcessor)

// WithParseWorkers sets how many goroutines tokenize one input.
func WithParseWorkers(n int) ShardOption {
	return func(s *ShardProcessor) {
		s.workers = n
	}
}

// WithPlanCache keeps up to size decoded manifests between calls to Process.
func WithPlanCache(size int) ShardOption {
	return func(s *ShardProcessor) {
		if size <= 0 {
			s.plans = nil
			return
		}
		cache, err := lru.New(size)
		if err != nil {
			log.Warnf("Disabling plan cache: %s", err)
			return
		}
		s.plans = cache
	}
}

// NewShardProcessor creates a ShardProcessor backed by fs.
func NewShardProcessor(fs corfs.FileSystem, options ...ShardOption) *ShardProcessor {
	s := &ShardProcessor{
		fs:      fs,
		workers: runtime.NumCPU(),
	}
	for _, f := range options {
		f(s)
	}
	return s
}

// loadManifest fetches and decodes the manifest at plan, consulting the
// cache first.
func (s *ShardProcessor) loadManifest(ctx context.Context, plan locator.Locator) (*Manifest, error) {
	if s.plans != nil {
		if cached, ok := s.plans.Get(plan.URI()); ok {
			log.Debugf("Using cached plan %s", plan)
			return cached.(*Manifest), nil
		}
	}

	data, err := corfs.ReadAll(ctx, s.fs, plan)
	if errors.Is(err, corfs.ErrNotExist) {
		return nil, newError("migrate", plan, ErrPlanNotFound, err)
	}
	if err != nil {
		return nil, newError("migrate", plan, ErrObjectFetchFailed, err)
	}

	manifest, err := DecodeManifest(data)
	if err != nil {
		return nil, newError("migrate", plan, ErrPlanCorrupt, err)
	}

	if s.plans != nil {
		s.plans.Add(plan.URI(), manifest)
	}
	return manifest, nil
}

// Process runs shard index of the plan stored at plan. The result object
// is written only after the whole input has been counted.
func (s *ShardProcessor) Process(ctx context.Context, plan locator.Locator, index int) (*ShardResult, error) {
	manifest, err := s.loadManifest(ctx, plan)
	if err != nil {
		return nil, err
	}

	item, err := manifest.Item(index)
	if err != nil {
		return nil, newError("migrate", plan, ErrIndexOutOfRange, err)
	}
	source := manifest.SourceOf(item)
	destination := manifest.DestinationOf(item)

	data, err := corfs.ReadAll(ctx, s.fs, source)
	if err != nil {
		return nil, newError("migrate", source, ErrObjectFetchFailed, err)
	}
	log.Debugf("Fetched shard %d input %s (%s)", index, source, humanize.Bytes(uint64(len(data))))

	table, err := CountWords(ctx, string(data), s.workers)
	if err != nil {
		return nil, errors.Wrapf(err, "counting words of %s", source)
	}

	buf := new(bytes.Buffer)
	emitter := newResultEmitter(buf)
	if err := emitter.EmitRanked(table.Ranked()); err != nil {
		return nil, newError("migrate", destination, ErrObjectWriteFailed, err)
	}
	if err := corfs.WriteAll(ctx, s.fs, destination, buf.Bytes()); err != nil {
		return nil, newError("migrate", destination, ErrObjectWriteFailed, err)
	}
	log.Debugf("Wrote %d tokens to %s (%s)", table.Len(), destination, humanize.Bytes(uint64(emitter.bytesWritten())))

	return &ShardResult{
		Plan:         plan,
		Index:        index,
		Item:         item,
		Source:       source,
		Destination:  destination,
		BytesRead:    int64(len(data)),
		BytesWritten: emitter.bytesWritten(),
		Tokens:       table.Len(),
	}, nil
}
