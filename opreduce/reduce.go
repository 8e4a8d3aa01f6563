// Package opreduce implements the Reduce operator: partition a stream
// that is already sorted on a key-tuple into maximal runs of equal
// key, and call a user-supplied Reducer once per run. The group
// boundary is found with one-row lookahead (stream.Peeker), the same
// peek-to-find-the-next-key technique the teacher's join op uses to
// detect the end of a run on its right-hand input.
package opreduce

import (
	"github.com/kifbell/compgraph/errs"
	"github.com/kifbell/compgraph/stream"
	"github.com/kifbell/compgraph/value"
)

// Reducer folds one group of rows sharing the same key into zero or
// more output rows.
type Reducer interface {
	Reduce(keys value.Key, group stream.Reader) ([]value.Row, error)
}

// Func adapts a plain function to the Reducer interface.
type Func func(keys value.Key, group stream.Reader) ([]value.Row, error)

func (f Func) Reduce(keys value.Key, group stream.Reader) ([]value.Row, error) {
	return f(keys, group)
}

// New wraps parent, which must already be sorted (prefix-wise) on
// keys, grouping it into maximal equal-key runs and folding each with
// reducer. An input with a key inversion fails with an OrderError
// before the offending row is ever handed to reducer.
func New(parent stream.Reader, reducer Reducer, keys value.Key) stream.Reader {
	return &reduceReader{
		parent:  stream.NewPeeker(parent),
		reducer: reducer,
		keys:    keys,
	}
}

type reduceReader struct {
	parent  *stream.Peeker
	reducer Reducer
	keys    value.Key

	prevKey []value.Value
	havePrev bool

	buf []value.Row
	idx int
	done bool
}

func (r *reduceReader) Next() (value.Row, error) {
	for {
		if r.idx < len(r.buf) {
			row := r.buf[r.idx]
			r.idx++
			return row, nil
		}
		if r.done {
			return nil, nil
		}
		group, err := r.nextGroup()
		if err != nil {
			r.done = true
			return nil, err
		}
		if group == nil {
			r.done = true
			return nil, nil
		}
		out, err := r.reducer.Reduce(r.keys, stream.Slice(group))
		if err != nil {
			r.done = true
			return nil, errs.Wrap(errs.User, "reduce", "reducer raised", err)
		}
		r.buf = out
		r.idx = 0
	}
}

// nextGroup materializes the next maximal run of equal-key rows,
// checking that the run's key is not less than the previous run's.
func (r *reduceReader) nextGroup() ([]value.Row, error) {
	first, err := r.parent.Peek()
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, nil
	}
	key, err := r.keys.Extract(first)
	if err != nil {
		return nil, err
	}
	if r.havePrev && value.CompareKeys(key, r.prevKey) < 0 {
		return nil, errs.New(errs.Order, "reduce", "key decreased across groups")
	}
	r.prevKey = key
	r.havePrev = true

	var group []value.Row
	for {
		row, err := r.parent.Peek()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		rowKey, err := r.keys.Extract(row)
		if err != nil {
			return nil, err
		}
		if value.CompareKeys(rowKey, key) != 0 {
			break
		}
		if _, err := r.parent.Read(); err != nil {
			return nil, err
		}
		group = append(group, row)
	}
	return group, nil
}

func (r *reduceReader) Close() error {
	return r.parent.Close()
}
