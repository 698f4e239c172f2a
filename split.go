package batchcount

// minSplitSize is the smallest number of tokens or lines worth handing to
// a separate goroutine.
const minSplitSize = 2048

// inputSplit is a contiguous run of elements of a sliced input.
// Start is inclusive and End is exclusive. For example, a split with
// Start 10 and End 15 covers 5 elements.
type inputSplit struct {
	Start int
	End   int
}

// calculateSplits cuts n elements into at most maxSplits contiguous splits
// of at least minSize elements each (the last split may be shorter).
// Splits cover [0, n) in order without gaps or overlap.
func calculateSplits(n, maxSplits, minSize int) []inputSplit {
	if n <= 0 {
		return []inputSplit{}
	}
	if maxSplits < 1 {
		maxSplits = 1
	}
	if minSize < 1 {
		minSize = 1
	}

	splitSize := (n + maxSplits - 1) / maxSplits
	if splitSize < minSize {
		splitSize = minSize
	}

	splits := make([]inputSplit, 0, (n+splitSize-1)/splitSize)
	for start := 0; start < n; start += splitSize {
		splits = append(splits, inputSplit{
			Start: start,
			End:   min(start+splitSize, n),
		})
	}
	return splits
}
