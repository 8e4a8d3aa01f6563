// Package opsort implements the external (bounded-memory) sort: rows
// are accumulated into chunks of at most Config.ChunkRows, each chunk
// is sorted in memory and spilled to its own segment file, and at end
// of input a k-way merge over a min-heap keyed on the sort's key-tuple
// produces the total order.
//
// The chunk-then-flush shape is grounded in the teacher's meta.Slicer,
// which accumulates upstream data.Objects until the next one falls
// outside the running min/max span and only then emits a partition;
// here the trigger is chunk size rather than key range, but the
// accumulate/flush/reset structure is the same. Spilling a chunk while
// the next one accumulates is grounded in aggregate.Aggregator, which
// is likewise free to spill its in-memory table mid-stream once it
// hits a row limit (DefaultLimit) and keeps consuming input afterward.
package opsort

import (
	"container/heap"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kifbell/compgraph/diag"
	"github.com/kifbell/compgraph/errs"
	"github.com/kifbell/compgraph/stream"
	"github.com/kifbell/compgraph/value"
)

const defaultChunkRows = 8192

// Config holds the external sort's operational parameters, all
// optional; zero values select the documented defaults.
type Config struct {
	// ChunkRows bounds how many rows are held in memory before a chunk
	// is sorted and spilled. Defaults to 8192.
	ChunkRows int
	// SpillDir is the directory under which a unique, per-run
	// subdirectory of segment files is created. Defaults to
	// os.TempDir().
	SpillDir string
	// Serializer selects the on-disk encoding for spill segments.
	Serializer Serializer
	// Logger receives one Info entry per chunk spilled to disk.
	// Defaults to a no-op logger, matching how the teacher's own
	// Config defaults an unset *zap.Logger to zap.NewNop().
	Logger *zap.Logger
	// Metrics, if set, has RecordSpill called with the byte size of
	// every segment written to disk.
	Metrics *diag.Metrics
}

func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func (c Config) chunkRows() int {
	if c.ChunkRows > 0 {
		return c.ChunkRows
	}
	return defaultChunkRows
}

func (c Config) spillDir() string {
	if c.SpillDir != "" {
		return c.SpillDir
	}
	return os.TempDir()
}

// New totally orders parent's rows on keys within bounded memory. Ties
// on keys resolve in an arbitrary but deterministic order for a given
// run: rows from one chunk keep their input order, and across chunks
// the segment whose generated file name sorts first wins. New does not
// require parent to already be sorted.
func New(parent stream.Reader, keys value.Key, cfg Config) stream.Reader {
	return &sortReader{parent: parent, keys: keys, cfg: cfg}
}

type sortReader struct {
	parent stream.Reader
	keys   value.Key
	cfg    Config

	once    sync.Once
	setupErr error
	merger  *merger
	runDir  string
}

func (s *sortReader) Next() (value.Row, error) {
	s.once.Do(func() { s.setupErr = s.setup() })
	if s.setupErr != nil {
		return nil, s.setupErr
	}
	return s.merger.next()
}

// setup drains parent, spilling chunks as they fill, and builds the
// merge reader for the resulting segments (the final partial chunk is
// spilled too); when nothing was spilled, the merge reads the single
// chunk from memory.
func (s *sortReader) setup() error {
	chunkRows := s.cfg.chunkRows()
	var group errgroup.Group
	var segPaths []string
	var segMu sync.Mutex
	spilled := false

	spill := func(rows []value.Row) {
		spilled = true
		if s.runDir == "" {
			dir := filepath.Join(s.cfg.spillDir(), "compgraph-sort-"+ksuid.New().String())
			if err := os.MkdirAll(dir, 0o755); err != nil {
				group.Go(func() error {
					return errs.Wrap(errs.IO, "sort.spill", "creating spill dir", err)
				})
				return
			}
			s.runDir = dir
		}
		runDir := s.runDir
		group.Go(func() error {
			path := filepath.Join(runDir, ksuid.New().String()+".seg")
			path, size, err := writeSegment(path, rows, s.keys, s.cfg.Serializer)
			if err != nil {
				return err
			}
			s.cfg.logger().Info("spilled sort chunk",
				zap.String("segment", filepath.Base(path)),
				zap.Int("rows", len(rows)),
				zap.Int64("bytes", size),
			)
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.RecordSpill(size)
			}
			segMu.Lock()
			segPaths = append(segPaths, path)
			segMu.Unlock()
			return nil
		})
	}

	var buf []value.Row
	for {
		row, err := s.parent.Next()
		if err != nil {
			_ = group.Wait()
			_ = s.parent.Close()
			s.cleanup()
			return err
		}
		if row == nil {
			break
		}
		buf = append(buf, row)
		if len(buf) >= chunkRows {
			spill(buf)
			buf = nil
		}
	}
	if err := s.parent.Close(); err != nil {
		_ = group.Wait()
		s.cleanup()
		return err
	}

	// If nothing was ever spilled, sort the sole chunk in memory and
	// skip disk entirely.
	if len(buf) > 0 && !spilled {
		sortRows(buf, s.keys)
		s.merger = newMerger(s.keys, []segmentReader{&memSegment{rows: buf}})
		return nil
	}
	if len(buf) > 0 {
		spill(buf)
	}
	if err := group.Wait(); err != nil {
		s.cleanup()
		return err
	}
	if s.runDir == "" {
		// No input at all.
		s.merger = newMerger(s.keys, nil)
		return nil
	}

	sort.Strings(segPaths) // deterministic open order for a given run
	readers := make([]segmentReader, 0, len(segPaths))
	for _, path := range segPaths {
		f, err := os.Open(path)
		if err != nil {
			s.cleanup()
			return errs.Wrap(errs.IO, "sort.merge", "opening segment", err)
		}
		readers = append(readers, newSegmentReader(f, s.cfg.Serializer))
	}
	s.merger = newMerger(s.keys, readers)
	return nil
}

func writeSegment(path string, rows []value.Row, keys value.Key, ser Serializer) (string, int64, error) {
	sortRows(rows, keys)
	f, err := os.Create(path)
	if err != nil {
		return "", 0, errs.Wrap(errs.IO, "sort.spill", "creating segment", err)
	}
	w := newSegmentWriter(f, ser)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return "", 0, err
		}
	}
	if err := w.Close(); err != nil {
		return "", 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, errs.Wrap(errs.IO, "sort.spill", "stat-ing segment", err)
	}
	return path, info.Size(), nil
}

// sortRows sorts a single chunk in memory. Stability within the chunk
// is guaranteed; no ordering across chunks is implied by this alone.
func sortRows(rows []value.Row, keys value.Key) {
	sort.SliceStable(rows, func(i, j int) bool {
		ki, erri := keys.Extract(rows[i])
		kj, errj := keys.Extract(rows[j])
		if erri != nil || errj != nil {
			// A missing key column surfaces properly once the row
			// reaches a consumer; here we only need a total preorder
			// to finish the in-memory sort deterministically.
			return erri == nil && errj != nil
		}
		return value.CompareKeys(ki, kj) < 0
	})
}

func (s *sortReader) Close() error {
	if s.merger != nil {
		if err := s.merger.close(); err != nil {
			s.cleanup()
			return err
		}
	}
	s.cleanup()
	return nil
}

func (s *sortReader) cleanup() {
	if s.runDir != "" {
		os.RemoveAll(s.runDir)
		s.runDir = ""
	}
}

type memSegment struct {
	rows []value.Row
	idx  int
}

func (m *memSegment) Read() (value.Row, error) {
	if m.idx >= len(m.rows) {
		return nil, nil
	}
	row := m.rows[m.idx]
	m.idx++
	return row, nil
}

func (m *memSegment) Close() error { return nil }

// merger performs the k-way merge across the sorted segments using a
// min-heap keyed on the sort's key-tuple, in the spirit of the classic
// external merge sort and of the teacher's spill.MergeSort (referenced
// by aggregate.Aggregator but not itself vendored here, so the merge
// below is a from-scratch implementation of the same contract: Peek
// the smallest pending key across all segments).
type merger struct {
	keys    value.Key
	sources []segmentReader
	h       *rowHeap
	started bool
}

func newMerger(keys value.Key, sources []segmentReader) *merger {
	return &merger{keys: keys, sources: sources}
}

func (m *merger) next() (value.Row, error) {
	if !m.started {
		m.h = &rowHeap{keys: m.keys}
		heap.Init(m.h)
		for i, src := range m.sources {
			row, err := src.Read()
			if err != nil {
				return nil, err
			}
			if row != nil {
				heap.Push(m.h, &heapItem{row: row, src: i})
			}
		}
		m.started = true
	}
	if m.h.Len() == 0 {
		return nil, nil
	}
	top := heap.Pop(m.h).(*heapItem)
	next, err := m.sources[top.src].Read()
	if err != nil {
		return nil, err
	}
	if next != nil {
		heap.Push(m.h, &heapItem{row: next, src: top.src})
	}
	return top.row, nil
}

func (m *merger) close() error {
	var first error
	for _, src := range m.sources {
		if err := src.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type heapItem struct {
	row value.Row
	src int
}

// rowHeap is built fresh per merger on its first next call; rows are
// compared on the enclosing sort's key-tuple, copied from merger.keys
// into rowHeap.keys, with ties going to the lower segment index.
type rowHeap struct {
	items []*heapItem
	keys  value.Key
}

func (h rowHeap) Len() int { return len(h.items) }

func (h rowHeap) Less(i, j int) bool {
	ki, _ := h.keys.Extract(h.items[i].row)
	kj, _ := h.keys.Extract(h.items[j].row)
	if c := value.CompareKeys(ki, kj); c != 0 {
		return c < 0
	}
	return h.items[i].src < h.items[j].src
}

func (h rowHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *rowHeap) Push(x any) { h.items = append(h.items, x.(*heapItem)) }

func (h *rowHeap) Pop() any {
	n := len(h.items)
	item := h.items[n-1]
	h.items = h.items[:n-1]
	return item
}
