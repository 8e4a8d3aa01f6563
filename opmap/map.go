// Package opmap implements the Map operator: apply a user-supplied
// Mapper to each upstream row, flattening its zero-or-more outputs
// into the downstream sequence. The pull loop buffers one row's worth
// of mapper output and walks it with an index cursor before refilling
// from upstream, the same buffer-and-cursor shape as the teacher's
// vam/op.Over (which flattens each upstream vector's "over" expression
// results one slot at a time before pulling the next vector).
package opmap

import (
	"github.com/kifbell/compgraph/errs"
	"github.com/kifbell/compgraph/stream"
	"github.com/kifbell/compgraph/value"
)

// Mapper is a per-row transform producing zero or more output rows.
type Mapper interface {
	Map(row value.Row) ([]value.Row, error)
}

// Func adapts a plain function to the Mapper interface.
type Func func(row value.Row) ([]value.Row, error)

func (f Func) Map(row value.Row) ([]value.Row, error) { return f(row) }

// New wraps parent with mapper, preserving order: a row's outputs
// precede the next row's outputs.
func New(parent stream.Reader, mapper Mapper) stream.Reader {
	return &mapReader{parent: parent, mapper: mapper}
}

type mapReader struct {
	parent stream.Reader
	mapper Mapper

	buf []value.Row
	idx int
}

func (m *mapReader) Next() (value.Row, error) {
	for {
		if m.idx < len(m.buf) {
			row := m.buf[m.idx]
			m.idx++
			return row, nil
		}
		row, err := m.parent.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, nil
		}
		out, err := m.mapper.Map(row)
		if err != nil {
			return nil, errs.Wrap(errs.User, "map", "mapper raised", err)
		}
		m.buf = out
		m.idx = 0
	}
}

func (m *mapReader) Close() error {
	return m.parent.Close()
}
