// Package stream defines the pull-based row sequence contract shared
// by every operator in compgraph: a Reader hands back one Row at a
// time and is told to release its resources exactly once, whether or
// not it was drained. This replaces the teacher's batched, done-flag
// Pull(done bool) protocol (runtime/sam/op's zbuf.Puller) with a
// single-row Next/Close pair, which is the natural shape for a library
// whose unit of dataflow is one Row rather than a vector batch.
package stream

import "github.com/kifbell/compgraph/value"

// Reader is a lazy, single-pass, finite sequence of rows.
type Reader interface {
	// Next returns the next row. A nil error and a nil Row signal end
	// of stream, matching the spec's "finite sequence" wording. A
	// non-nil error terminates the stream at the next pull.
	Next() (value.Row, error)
	// Close releases resources (open files, spill segments) regardless
	// of whether the stream was drained or abandoned mid-flight.
	Close() error
}

// Source is the zero-argument callable bound to an iterator source's
// name at run time; each call must return a fresh row sequence so a
// graph can be run more than once against the same bindings.
type Source func() Reader

// Bindings maps an iterator source's name to the callable that
// supplies its rows. One binding is required per from_iter(name) in
// the graph being run.
type Bindings map[string]Source

// Slice adapts an in-memory row slice to a Reader, used by tests and
// by reduce to hand each materialized group to its Reducer.
func Slice(rows []value.Row) Reader {
	return &sliceReader{rows: rows}
}

type sliceReader struct {
	rows []value.Row
}

func (s *sliceReader) Next() (value.Row, error) {
	if len(s.rows) == 0 {
		return nil, nil
	}
	r := s.rows[0]
	s.rows = s.rows[1:]
	return r, nil
}

func (s *sliceReader) Close() error { return nil }

// Drain pulls every row from r until end of stream or error, closing r
// regardless of outcome. Used by tests and by reducers that
// materialize their whole group.
func Drain(r Reader) ([]value.Row, error) {
	defer r.Close()
	var out []value.Row
	for {
		row, err := r.Next()
		if err != nil {
			return out, err
		}
		if row == nil {
			return out, nil
		}
		out = append(out, row)
	}
}

// ErrFunc adapts a function returning (Row, error) plus a close func
// into a Reader, for callers that compute rows procedurally instead of
// holding a pre-built slice. The built-in operators use their own
// Reader types rather than ErrFunc.
type ErrFunc struct {
	NextFunc  func() (value.Row, error)
	CloseFunc func() error
}

func (f *ErrFunc) Next() (value.Row, error) {
	return f.NextFunc()
}

func (f *ErrFunc) Close() error {
	if f.CloseFunc == nil {
		return nil
	}
	return f.CloseFunc()
}
