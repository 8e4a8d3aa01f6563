// Package graph implements the deferred composition and execution
// driver: an immutable, copy-on-extend description of a pipeline that
// only becomes a live row stream when Run is called.
//
// The teacher keeps its query plan as a root-last chain walked
// backwards at execution time, and stacks a join's right-hand operand
// on a package-level list popped during that walk. This package takes
// the alternative the teacher's own commentary recommends: each node
// is a persistent, forward-linked cell pointing at its parent, and a
// join node carries its right subgraph directly as a field, so running
// a graph twice never depends on shared mutable stack state.
package graph

import (
	"github.com/kifbell/compgraph/diag"
	"github.com/kifbell/compgraph/errs"
	"github.com/kifbell/compgraph/opjoin"
	"github.com/kifbell/compgraph/opmap"
	"github.com/kifbell/compgraph/opreduce"
	"github.com/kifbell/compgraph/opsort"
	"github.com/kifbell/compgraph/rowio"
	"github.com/kifbell/compgraph/stream"
	"github.com/kifbell/compgraph/value"
)

// Graph is an immutable pipeline description. The zero Graph has no
// source; composing on it is a construction error, surfaced when Run
// is called rather than at the composing call itself, so that every
// composition method can keep the single-return-value shape the
// library surface promises.
type Graph struct {
	tail    *node
	err     error
	metrics *diag.Metrics
}

// WithMetrics attaches m so that every operator built from this graph
// from this point on counts each row it produces against m.RowsEmitted,
// labeled by operator kind. It is not inherited by a join's right
// subgraph; call WithMetrics on that Graph value too if its rows should
// be counted as well.
func (g Graph) WithMetrics(m *diag.Metrics) Graph {
	g.metrics = m
	return g
}

type kind int

const (
	kindSource kind = iota
	kindMap
	kindReduce
	kindSort
	kindJoin
)

type node struct {
	prev *node
	kind kind

	open   func(bindings stream.Bindings) (stream.Reader, error)
	mapper opmap.Mapper
	reducer opreduce.Reducer
	keys    value.Key
	sortCfg opsort.Config
	joinCfg opjoin.Config
	right   Graph
}

// FromIter builds a one-node graph reading from the bound source
// named name.
func FromIter(name string) Graph {
	return Graph{tail: &node{
		kind: kindSource,
		open: func(bindings stream.Bindings) (stream.Reader, error) {
			return rowio.Iterator(name, bindings)
		},
	}}
}

// FromFile builds a one-node graph reading path, parsed line-by-line
// by parser.
func FromFile(path string, parser rowio.LineParser) Graph {
	return Graph{tail: &node{
		kind: kindSource,
		open: func(stream.Bindings) (stream.Reader, error) {
			return rowio.File(path, parser), nil
		},
	}}
}

func (g Graph) extend(n *node) Graph {
	if g.err != nil {
		return g
	}
	if g.tail == nil {
		return Graph{err: errs.New(errs.Construction, "graph", "cannot compose on a graph without a source")}
	}
	n.prev = g.tail
	return Graph{tail: n, metrics: g.metrics}
}

// Map appends a per-row transform.
func (g Graph) Map(mapper opmap.Mapper) Graph {
	return g.extend(&node{kind: kindMap, mapper: mapper})
}

// Reduce appends a grouped fold over runs of equal keys. The upstream
// must already be sorted on keys; Reduce does not check this up front,
// only detects an inversion once it is read (§7, OrderError).
func (g Graph) Reduce(reducer opreduce.Reducer, keys value.Key) Graph {
	return g.extend(&node{kind: kindReduce, reducer: reducer, keys: keys})
}

// Sort appends a total ordering by keys, computed within bounded
// memory per cfg.
func (g Graph) Sort(keys value.Key, cfg opsort.Config) Graph {
	return g.extend(&node{kind: kindSort, keys: keys, sortCfg: cfg})
}

// Join appends a two-input merge against other's output, executed as
// an owned subgraph when this graph runs. Both this graph's current
// output and other's output must already be sorted on keys.
func (g Graph) Join(cfg opjoin.Config, other Graph, keys value.Key) Graph {
	return g.extend(&node{kind: kindJoin, joinCfg: cfg, right: other, keys: keys})
}

// Run executes the graph against bindings, returning a lazy row
// stream. Each call to Run produces an independent stream with its own
// operator state; bindings is consulted once per iterator source
// reached, including those inside join right-subgraphs.
func (g Graph) Run(bindings stream.Bindings) (stream.Reader, error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.tail == nil {
		return nil, errs.New(errs.Construction, "graph.Run", "graph has no source")
	}
	return build(g.tail, bindings, g.metrics)
}

func build(n *node, bindings stream.Bindings, m *diag.Metrics) (stream.Reader, error) {
	switch n.kind {
	case kindSource:
		r, err := n.open(bindings)
		if err != nil {
			return nil, err
		}
		return countRows(r, m, "source"), nil
	case kindMap:
		parent, err := build(n.prev, bindings, m)
		if err != nil {
			return nil, err
		}
		return countRows(opmap.New(parent, n.mapper), m, "map"), nil
	case kindReduce:
		parent, err := build(n.prev, bindings, m)
		if err != nil {
			return nil, err
		}
		return countRows(opreduce.New(parent, n.reducer, n.keys), m, "reduce"), nil
	case kindSort:
		parent, err := build(n.prev, bindings, m)
		if err != nil {
			return nil, err
		}
		return countRows(opsort.New(parent, n.keys, n.sortCfg), m, "sort"), nil
	case kindJoin:
		left, err := build(n.prev, bindings, m)
		if err != nil {
			return nil, err
		}
		right, err := n.right.Run(bindings)
		if err != nil {
			_ = left.Close()
			return nil, err
		}
		return countRows(opjoin.New(left, right, n.keys, n.joinCfg), m, "join"), nil
	default:
		return nil, errs.New(errs.Construction, "graph.Run", "unreachable node kind")
	}
}

// countRows wraps r so that every row it successfully produces is
// counted against m.RowsEmitted under operator, leaving r untouched
// when m is nil (the default, no-observability path).
func countRows(r stream.Reader, m *diag.Metrics, operator string) stream.Reader {
	if m == nil {
		return r
	}
	return &countingReader{Reader: r, metrics: m, operator: operator}
}

type countingReader struct {
	stream.Reader
	metrics  *diag.Metrics
	operator string
}

func (c *countingReader) Next() (value.Row, error) {
	row, err := c.Reader.Next()
	if err == nil && row != nil {
		c.metrics.CountRow(c.operator)
	}
	return row, err
}
