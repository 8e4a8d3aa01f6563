package catalog

import (
	"container/heap"

	"github.com/kifbell/compgraph/opreduce"
	"github.com/kifbell/compgraph/stream"
	"github.com/kifbell/compgraph/value"
)

// TopN keeps, per group, the n rows with the greatest value in column,
// using a size-bounded min-heap so memory stays O(n) regardless of
// group size. Ties on column are broken arbitrarily; this spec leaves
// intra-group tie order unspecified, matching the source's own
// max-heap-of-negated-keys reducer.
func TopN(column string, n int) opreduce.Reducer {
	return opreduce.Func(func(keys value.Key, group stream.Reader) ([]value.Row, error) {
		h := &topNHeap{column: column}
		for {
			row, err := group.Next()
			if err != nil {
				return nil, err
			}
			if row == nil {
				break
			}
			heap.Push(h, row)
			if h.Len() > n {
				heap.Pop(h)
			}
		}
		out := make([]value.Row, h.Len())
		for i := len(out) - 1; i >= 0; i-- {
			out[i] = heap.Pop(h).(value.Row)
		}
		return out, nil
	})
}

// topNHeap is a min-heap on column so that the smallest of the n
// currently-kept rows sits at the root and is the first evicted when a
// larger row arrives.
type topNHeap struct {
	column string
	rows   []value.Row
}

func (h *topNHeap) Len() int { return len(h.rows) }

func (h *topNHeap) Less(i, j int) bool {
	return value.Compare(h.rows[i][h.column], h.rows[j][h.column]) < 0
}

func (h *topNHeap) Swap(i, j int) { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }

func (h *topNHeap) Push(x any) { h.rows = append(h.rows, x.(value.Row)) }

func (h *topNHeap) Pop() any {
	n := len(h.rows)
	row := h.rows[n-1]
	h.rows = h.rows[:n-1]
	return row
}
