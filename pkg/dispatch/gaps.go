package dispatch

import (
	"sort"

	"github.com/0xmhha/creation-indexer/pkg/scan"
)

// DetectGaps returns the parts of [from, to) not covered by any window in
// covered. Windows may overlap and arrive in any order.
func DetectGaps(from, to uint64, covered []scan.BlockRange) []scan.BlockRange {
	if from >= to {
		return nil
	}

	windows := make([]scan.BlockRange, 0, len(covered))
	for _, w := range covered {
		if !w.Empty() {
			windows = append(windows, w)
		}
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].From < windows[j].From })

	var gaps []scan.BlockRange
	next := from
	for _, w := range windows {
		if next >= to {
			break
		}
		if w.To <= next {
			continue
		}
		if w.From > next {
			gaps = append(gaps, scan.BlockRange{From: next, To: min(w.From, to)})
		}
		next = max(next, w.To)
	}
	if next < to {
		gaps = append(gaps, scan.BlockRange{From: next, To: to})
	}
	return gaps
}

// GapBlocks sums the block count of gaps.
func GapBlocks(gaps []scan.BlockRange) uint64 {
	var n uint64
	for _, g := range gaps {
		n += g.Len()
	}
	return n
}
