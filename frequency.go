package batchcount

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// tokenSeparator is the only character that separates tokens. Other
// whitespace is either stripped or kept as part of a token.
const tokenSeparator = " "

// stripChars are trimmed from both ends of a token and removed from its inside.
const stripChars = ".,!()\t\r\n"

var stripReplacer = strings.NewReplacer(
	".", "",
	",", "",
	"!", "",
	"(", "",
	")", "",
	"\t", "",
	"\r", "",
	"\n", "",
)

// cancelCheckInterval is how many tokens or lines are processed between
// context checks.
const cancelCheckInterval = 4096

// normalizeToken strips punctuation and lowercases a raw token.
func normalizeToken(raw string) string {
	token := strings.Trim(raw, stripChars)
	token = stripReplacer.Replace(token)
	return strings.ToLower(token)
}

// TokenCount is one entry of a ranked frequency table.
type TokenCount struct {
	Token string
	Count int64
}

// FrequencyTable counts tokens and remembers the order in which each
// distinct token was first seen. It is not safe for concurrent use.
type FrequencyTable struct {
	counts map[string]int64
	order  []string
}

// NewFrequencyTable returns an empty FrequencyTable.
func NewFrequencyTable() *FrequencyTable {
	return &FrequencyTable{counts: make(map[string]int64)}
}

// Add adds n occurrences of token.
func (f *FrequencyTable) Add(token string, n int64) {
	if _, seen := f.counts[token]; !seen {
		f.order = append(f.order, token)
	}
	f.counts[token] += n
}

// Len returns the number of distinct tokens.
func (f *FrequencyTable) Len() int {
	return len(f.order)
}

// Merge adds every count in other to f. Tokens new to f are ordered after
// f's existing tokens, in other's first-seen order.
func (f *FrequencyTable) Merge(other *FrequencyTable) {
	for _, token := range other.order {
		f.Add(token, other.counts[token])
	}
}

// Ranked returns the table ordered by descending count. Ties keep
// first-seen order.
func (f *FrequencyTable) Ranked() []TokenCount {
	ranked := make([]TokenCount, len(f.order))
	for i, token := range f.order {
		ranked[i] = TokenCount{Token: token, Count: f.counts[token]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	return ranked
}

// countTokens counts the normalized form of each raw token.
func countTokens(ctx context.Context, tokens []string) (*FrequencyTable, error) {
	table := NewFrequencyTable()
	for i, raw := range tokens {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		table.Add(normalizeToken(raw), 1)
	}
	return table, nil
}

// mergeTables folds tables into one, in slice order.
func mergeTables(tables []*FrequencyTable) *FrequencyTable {
	merged := NewFrequencyTable()
	for _, table := range tables {
		if table != nil {
			merged.Merge(table)
		}
	}
	return merged
}

// CountWords tokenizes text and counts its tokens using up to workers
// goroutines. The text is cut into contiguous runs of tokens which are
// counted in parallel and folded back together in text order, so the result,
// including first-seen order, does not depend on scheduling.
func CountWords(ctx context.Context, text string, workers int) (*FrequencyTable, error) {
	if workers < 1 {
		workers = 1
	}
	tokens := strings.Split(text, tokenSeparator)
	splits := calculateSplits(len(tokens), workers, minSplitSize)
	if len(splits) <= 1 {
		return countTokens(ctx, tokens)
	}

	tables := make([]*FrequencyTable, len(splits))
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(workers))
	for i, split := range splits {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		i, split := i, split
		g.Go(func() error {
			defer sem.Release(1)
			table, err := countTokens(gctx, tokens[split.Start:split.End])
			tables[i] = table
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return mergeTables(tables), nil
}
