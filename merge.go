package batchcount

import (
	"context"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/bcongdon/batchcount/internal/pkg/corfs"
	"github.com/bcongdon/batchcount/internal/pkg/locator"
)

// Merge filtering and ranking rules.
const (
	// DefaultTop is the number of ranked entries returned by Merge.
	DefaultTop = 100
	// minTokenLength is exclusive: a token must be longer than this.
	minTokenLength = 2
	// minMergedCount is inclusive.
	minMergedCount = 3
)

// stopwords are excluded from merge output regardless of count.
var stopwords = map[string]struct{}{
	"and": {},
	"the": {},
}

// MergeResult is the outcome of a Merge.
type MergeResult struct {
	Ranked       []TokenCount
	Objects      int   // result objects read
	BytesRead    int64 // total size of result objects
	Records      int64 // lines accumulated
	SkippedLines int64 // malformed lines ignored
	Distinct     int   // distinct tokens before filtering
}

// Merger combines every result object under a prefix into one ranked table.
type Merger struct {
	fs             corfs.FileSystem
	maxConcurrency int
	workers        int
	top            int
	progress       bool
}

// MergeOption configures a Merger
type MergeOption func(*Merger)

// WithMaxConcurrency bounds the number of result objects fetched at once.
// The default of 64 applies even when the store client could run more
// requests in parallel; pass a larger n to lift it.
func WithMaxConcurrency(n int) MergeOption {
	return func(m *Merger) {
		m.maxConcurrency = n
	}
}

// WithLineWorkers sets how many goroutines accumulate the lines of one object.
func WithLineWorkers(n int) MergeOption {
	return func(m *Merger) {
		m.workers = n
	}
}

// WithTop sets how many ranked entries Merge returns.
func WithTop(n int) MergeOption {
	return func(m *Merger) {
		m.top = n
	}
}

// WithProgress enables the progress bar on stderr.
func WithProgress(enabled bool) MergeOption {
	return func(m *Merger) {
		m.progress = enabled
	}
}

// NewMerger creates a Merger backed by fs.
func NewMerger(fs corfs.FileSystem, options ...MergeOption) *Merger {
	m := &Merger{
		fs:             fs,
		maxConcurrency: 64,
		workers:        runtime.NumCPU(),
		top:            DefaultTop,
	}
	for _, f := range options {
		f(m)
	}
	if m.maxConcurrency < 1 {
		m.maxConcurrency = 1
	}
	if m.workers < 1 {
		m.workers = 1
	}
	return m
}

// mergeStats are updated concurrently by accumulateRecords.
type mergeStats struct {
	bytesRead int64
	records   int64
	skipped   int64
}

// Merge reads every result object under source concurrently, sums the
// counts per token and returns the filtered top entries.
func (m *Merger) Merge(ctx context.Context, source locator.Locator) (*MergeResult, error) {
	keys, err := listInputs(ctx, m.fs, source)
	if err != nil {
		return nil, newError("merge", source, ErrObjectFetchFailed, err)
	}
	log.Debugf("Merging %d result objects under %s", len(keys), source)

	counter := NewCounter()
	stats := &mergeStats{}

	bar := pb.New(len(keys)).Prefix("Merge")
	if m.progress {
		bar.Output = os.Stderr
	} else {
		// pb prints to stdout when Output is nil unless NotPrint is set
		bar.NotPrint = true
	}
	bar.Start()

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(m.maxConcurrency))
	for _, key := range keys {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		loc := locator.Locator{Container: source.Container, Key: key}
		g.Go(func() error {
			defer sem.Release(1)
			defer bar.Increment()

			data, err := corfs.ReadAll(gctx, m.fs, loc)
			if err != nil {
				return newError("merge", loc, ErrObjectFetchFailed, err)
			}
			atomic.AddInt64(&stats.bytesRead, int64(len(data)))
			return accumulateRecords(gctx, string(data), counter, m.workers, stats)
		})
	}
	err = g.Wait()
	bar.Finish()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, newError("merge", source, ErrObjectFetchFailed, err)
	}

	counts := counter.Snapshot()
	return &MergeResult{
		Ranked:       rankCounts(counts, m.top),
		Objects:      len(keys),
		BytesRead:    stats.bytesRead,
		Records:      stats.records,
		SkippedLines: stats.skipped,
		Distinct:     len(counts),
	}, nil
}

// accumulateRecords adds every valid token:count line of content to counter,
// splitting the lines across up to workers goroutines.
func accumulateRecords(ctx context.Context, content string, counter *Counter, workers int, stats *mergeStats) error {
	lines := strings.Split(content, recordSeparator)
	splits := calculateSplits(len(lines), workers, minSplitSize)

	g, gctx := errgroup.WithContext(ctx)
	for _, split := range splits {
		split := split
		g.Go(func() error {
			var records, skipped int64
			for i, line := range lines[split.Start:split.End] {
				if i%cancelCheckInterval == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				token, count, ok := parseRecord(line)
				if !ok {
					skipped++
					continue
				}
				counter.Add(token, count)
				records++
			}
			atomic.AddInt64(&stats.records, records)
			atomic.AddInt64(&stats.skipped, skipped)
			return nil
		})
	}
	return g.Wait()
}

// keepToken applies the merge filter to one accumulated entry.
func keepToken(token string, count int64) bool {
	if utf8.RuneCountInString(token) <= minTokenLength {
		return false
	}
	if _, stop := stopwords[strings.ToLower(token)]; stop {
		return false
	}
	return count >= minMergedCount
}

// rankCounts filters counts and returns at most top entries by descending
// count. Equal counts are ordered by token so the result does not depend on
// the order in which objects were merged.
func rankCounts(counts map[string]int64, top int) []TokenCount {
	ranked := make([]TokenCount, 0, len(counts))
	for token, count := range counts {
		if keepToken(token, count) {
			ranked = append(ranked, TokenCount{Token: token, Count: count})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Token < ranked[j].Token
	})
	if top >= 0 && len(ranked) > top {
		ranked = ranked[:top]
	}
	return ranked
}
