package stream

import "github.com/kifbell/compgraph/value"

// Peeker lets a caller look at the next row of r without consuming it,
// the same role the teacher's zio.Peeker plays in front of join's
// right-hand input: reduce uses it to detect a group boundary before
// deciding the current run is complete, and join uses it to compare
// cursors without losing a row.
type Peeker struct {
	r      Reader
	peeked value.Row
	err    error
	has    bool
}

// NewPeeker wraps r with one-row lookahead.
func NewPeeker(r Reader) *Peeker {
	return &Peeker{r: r}
}

// Peek returns the next row without consuming it. Calling Peek again
// before a Read returns the same row.
func (p *Peeker) Peek() (value.Row, error) {
	if !p.has {
		p.peeked, p.err = p.r.Next()
		p.has = true
	}
	return p.peeked, p.err
}

// Read consumes and returns the row last returned by Peek, or pulls a
// fresh one if Peek was not called since the last Read.
func (p *Peeker) Read() (value.Row, error) {
	if p.has {
		p.has = false
		row, err := p.peeked, p.err
		p.peeked, p.err = nil, nil
		return row, err
	}
	return p.r.Next()
}

func (p *Peeker) Close() error { return p.r.Close() }
