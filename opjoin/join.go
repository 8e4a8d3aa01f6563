// Package opjoin implements the sort-merge join: a binary operator
// that walks two key-ordered streams with a pair of cursors, the same
// double-cursor shape as the teacher's join.Op (getJoinSet/readJoinSet
// peek across the right-hand input to find the run matching the
// left-hand key). Where the teacher specializes to SQL inner/left
// joins over typed records, this package generalizes to the four
// inner/outer/left/right strategies over dynamic rows and adds the
// key-collision (duplicate-column) suffix bookkeeping the teacher's
// RecordSplicer handles with a per-pair renumbering scheme (there,
// "_2", "_3", ... on every repeat; here, a caller-chosen pair of
// suffixes applied only to columns that actually collide).
package opjoin

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/kifbell/compgraph/errs"
	"github.com/kifbell/compgraph/stream"
	"github.com/kifbell/compgraph/value"
)

// Strategy selects join behavior for rows present on only one side.
type Strategy int

const (
	// Inner emits only matched pairs.
	Inner Strategy = iota
	// Left passes left-only rows through and drops right-only rows.
	Left
	// Right passes right-only rows through and drops left-only rows.
	Right
	// Outer passes both left-only and right-only rows through.
	Outer
)

// Config configures suffixes used to disambiguate a non-key column
// name that appears on both sides of a join. Suffixes default to "_1"
// (left) and "_2" (right) when left empty.
type Config struct {
	Strategy    Strategy
	LeftSuffix  string
	RightSuffix string
}

func (c Config) leftSuffix() string {
	if c.LeftSuffix == "" {
		return "_1"
	}
	return c.LeftSuffix
}

func (c Config) rightSuffix() string {
	if c.RightSuffix == "" {
		return "_2"
	}
	return c.RightSuffix
}

// New merges left and right, both of which must already be sorted on
// keys, according to cfg.Strategy.
func New(left, right stream.Reader, keys value.Key, cfg Config) stream.Reader {
	return &joinReader{
		left:  newRunSource(left, keys, "left"),
		right: newRunSource(right, keys, "right"),
		keys:  keys,
		cfg:   cfg,
		dups:  roaring.New(),
		cols:  newInterner(),
	}
}

type joinReader struct {
	left, right *runSource
	keys        value.Key
	cfg         Config

	// dups is the running duplicates set D (§4.5): the set of non-key
	// column names observed to collide on both sides during a matched
	// pair, stored as a bitmap over interned column-name ids so adding
	// and testing membership is an O(1) word operation regardless of
	// how many distinct columns the join has seen.
	dups *roaring.Bitmap
	cols *interner

	buf  []value.Row
	idx  int
	done bool
}

func (j *joinReader) Next() (value.Row, error) {
	for {
		if j.idx < len(j.buf) {
			row := j.buf[j.idx]
			j.idx++
			return row, nil
		}
		if j.done {
			return nil, nil
		}
		out, err := j.step()
		if err != nil {
			j.done = true
			return nil, err
		}
		if out == nil {
			j.done = true
			return nil, nil
		}
		j.buf = out
		j.idx = 0
	}
}

// step advances the merge by exactly one run comparison, returning the
// rows it produced, or nil once both sides are exhausted.
func (j *joinReader) step() ([]value.Row, error) {
	lKey, lOK, err := j.left.peekKey()
	if err != nil {
		return nil, err
	}
	rKey, rOK, err := j.right.peekKey()
	if err != nil {
		return nil, err
	}
	switch {
	case !lOK && !rOK:
		return nil, nil
	case lOK && !rOK:
		run, err := j.left.takeRun(lKey)
		if err != nil {
			return nil, err
		}
		return j.sideOnly(run, true), nil
	case !lOK && rOK:
		run, err := j.right.takeRun(rKey)
		if err != nil {
			return nil, err
		}
		return j.sideOnly(run, false), nil
	default:
		switch value.CompareKeys(lKey, rKey) {
		case -1:
			run, err := j.left.takeRun(lKey)
			if err != nil {
				return nil, err
			}
			return j.sideOnly(run, true), nil
		case 1:
			run, err := j.right.takeRun(rKey)
			if err != nil {
				return nil, err
			}
			return j.sideOnly(run, false), nil
		default:
			leftRun, err := j.left.takeRun(lKey)
			if err != nil {
				return nil, err
			}
			rightRun, err := j.right.takeRun(rKey)
			if err != nil {
				return nil, err
			}
			return j.emitPaired(leftRun, rightRun), nil
		}
	}
}

// sideOnly applies the one-sided behavior of the configured strategy
// to a residual run, whether encountered while the other side still
// has runs (step 3 of §4.5) or while draining after it is exhausted
// (step 4); both cases are handled identically, matching the spec's
// single table of per-strategy one-side behavior. A dropped run yields
// an empty, non-nil slice, since nil from step means end of stream.
func (j *joinReader) sideOnly(run []value.Row, isLeft bool) []value.Row {
	if len(run) == 0 {
		return []value.Row{}
	}
	switch j.cfg.Strategy {
	case Inner:
		return []value.Row{}
	case Left:
		if !isLeft {
			return []value.Row{}
		}
	case Right:
		if isLeft {
			return []value.Row{}
		}
	case Outer:
		// both sides pass through
	}
	return j.passThrough(run, isLeft)
}

// passThrough renames a non-key column only if it is already known (in
// D) to collide somewhere in this join, using the OPPOSITE side's
// suffix: a left-only residual row renamed-on-collision uses the right
// suffix, and a right-only row uses the left suffix. This mirrors how
// the same column name would have been tagged had it arrived as half
// of a matched pair instead, per the resolved open question on
// pass-through suffix direction (see DESIGN.md).
func (j *joinReader) passThrough(rows []value.Row, isLeft bool) []value.Row {
	suffix := j.cfg.leftSuffix()
	if isLeft {
		suffix = j.cfg.rightSuffix()
	}
	out := make([]value.Row, len(rows))
	for i, row := range rows {
		newRow := make(value.Row, len(row))
		for col, v := range row {
			name := col
			if j.dups.Contains(j.cols.id(col)) {
				name = col + suffix
			}
			newRow[name] = v
		}
		out[i] = newRow
	}
	return out
}

// emitPaired produces the Cartesian product of a matched left/right
// run pair, renaming a non-key column on first sight of a collision
// with the other side's row and remembering it in D from then on.
func (j *joinReader) emitPaired(leftRun, rightRun []value.Row) []value.Row {
	keyCols := make(map[string]bool, len(j.keys))
	for _, k := range j.keys {
		keyCols[k] = true
	}
	out := make([]value.Row, 0, len(leftRun)*len(rightRun))
	for _, a := range leftRun {
		for _, b := range rightRun {
			row := make(value.Row, len(a)+len(b))
			for _, k := range j.keys {
				row[k] = a[k]
			}
			for col, v := range a {
				if keyCols[col] {
					continue
				}
				name := col
				if _, collides := b[col]; collides || j.dups.Contains(j.cols.id(col)) {
					j.dups.Add(j.cols.id(col))
					name = col + j.cfg.leftSuffix()
				}
				row[name] = v
			}
			for col, v := range b {
				if keyCols[col] {
					continue
				}
				name := col
				if _, collides := a[col]; collides || j.dups.Contains(j.cols.id(col)) {
					j.dups.Add(j.cols.id(col))
					name = col + j.cfg.rightSuffix()
				}
				row[name] = v
			}
			out = append(out, row)
		}
	}
	return out
}

func (j *joinReader) Close() error {
	lerr := j.left.close()
	rerr := j.right.close()
	if lerr != nil {
		return lerr
	}
	return rerr
}

// interner assigns small, stable integer ids to column names so the
// duplicates set can be stored as a compact roaring.Bitmap rather than
// a map[string]struct{}; grounded on the teacher's TypeVectorTable,
// which likewise interns vectors of types to small ints so repeated
// occurrences collapse to an integer comparison.
type interner struct {
	ids   map[string]uint32
	names []string
}

func newInterner() *interner {
	return &interner{ids: make(map[string]uint32)}
}

func (in *interner) id(name string) uint32 {
	if id, ok := in.ids[name]; ok {
		return id
	}
	id := uint32(len(in.names))
	in.ids[name] = id
	in.names = append(in.names, name)
	return id
}

// runSource walks one side of the join: a peeked-ahead, key-ordered
// stream from which whole equal-key runs are pulled on demand, with
// order checking on every peek so an inversion is reported before the
// offending row is ever handed to the joiner.
type runSource struct {
	peeker  *stream.Peeker
	keys    value.Key
	side    string
	prevKey []value.Value
	hasPrev bool
}

func newRunSource(r stream.Reader, keys value.Key, side string) *runSource {
	return &runSource{peeker: stream.NewPeeker(r), keys: keys, side: side}
}

// peekKey returns the key of the next unconsumed run without consuming
// it, or ok=false at end of stream.
func (s *runSource) peekKey() (key []value.Value, ok bool, err error) {
	row, err := s.peeker.Peek()
	if err != nil {
		return nil, false, err
	}
	if row == nil {
		return nil, false, nil
	}
	k, err := s.keys.Extract(row)
	if err != nil {
		return nil, false, err
	}
	if s.hasPrev && value.CompareKeys(k, s.prevKey) < 0 {
		return nil, false, errs.New(errs.Order, "join."+s.side, "key decreased across groups")
	}
	return k, true, nil
}

// takeRun consumes every row sharing key from the front of the stream.
func (s *runSource) takeRun(key []value.Value) ([]value.Row, error) {
	var run []value.Row
	for {
		row, err := s.peeker.Peek()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		k, err := s.keys.Extract(row)
		if err != nil {
			return nil, err
		}
		if value.CompareKeys(k, key) != 0 {
			break
		}
		if _, err := s.peeker.Read(); err != nil {
			return nil, err
		}
		run = append(run, row)
	}
	s.prevKey = key
	s.hasPrev = true
	return run, nil
}

func (s *runSource) close() error {
	return s.peeker.Close()
}
