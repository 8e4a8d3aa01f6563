package opsort

import (
	"math/rand"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kifbell/compgraph/diag"
	"github.com/kifbell/compgraph/stream"
	"github.com/kifbell/compgraph/value"
)

func TestSortTotalOrderAndSpill(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(1))
	n := 2000
	rows := make([]value.Row, n)
	counts := map[int64]int{}
	for i := 0; i < n; i++ {
		v := int64(rng.Intn(500))
		rows[i] = value.Row{"n": value.NewInt(v)}
		counts[v]++
	}

	r := New(stream.Slice(rows), value.Key{"n"}, Config{ChunkRows: 50, SpillDir: dir})
	out, err := stream.Drain(r)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if len(out) != n {
		t.Fatalf("expected %d rows, got %d", n, len(out))
	}
	gotCounts := map[int64]int{}
	for i, row := range out {
		gotCounts[row["n"].Int()]++
		if i > 0 && out[i-1]["n"].Int() > row["n"].Int() {
			t.Fatalf("output not sorted at index %d: %v > %v", i, out[i-1]["n"], row["n"])
		}
	}
	for v, c := range counts {
		if gotCounts[v] != c {
			t.Fatalf("value %d: expected count %d, got %d", v, c, gotCounts[v])
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected spill dir to be empty after completion, found %v", entries)
	}
}

func TestSortChunkSizeDoesNotAffectMultiset(t *testing.T) {
	rows := make([]value.Row, 0, 30)
	for i := 29; i >= 0; i-- {
		rows = append(rows, value.Row{"n": value.NewInt(int64(i))})
	}
	small := New(stream.Slice(append([]value.Row{}, rows...)), value.Key{"n"}, Config{ChunkRows: 4})
	large := New(stream.Slice(append([]value.Row{}, rows...)), value.Key{"n"}, Config{ChunkRows: 1000})

	a, err := stream.Drain(small)
	if err != nil {
		t.Fatal(err)
	}
	b, err := stream.Drain(large)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i]["n"].Int() != b[i]["n"].Int() {
			t.Fatalf("mismatch at %d: %v vs %v", i, a[i]["n"], b[i]["n"])
		}
	}
}

func TestSortRecordsSpillBytesInMetrics(t *testing.T) {
	dir := t.TempDir()
	m := diag.NewMetrics()
	rows := make([]value.Row, 300)
	for i := range rows {
		rows[i] = value.Row{"n": value.NewInt(int64(300 - i))}
	}
	r := New(stream.Slice(rows), value.Key{"n"}, Config{ChunkRows: 10, SpillDir: dir, Metrics: m})
	if _, err := stream.Drain(r); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(m.SpillBytes); got <= 0 {
		t.Fatalf("expected SpillBytes > 0 after spilling, got %v", got)
	}
}

func TestSortResourceReleaseOnAbandon(t *testing.T) {
	dir := t.TempDir()
	rows := make([]value.Row, 300)
	for i := range rows {
		rows[i] = value.Row{"n": value.NewInt(int64(300 - i))}
	}
	r := New(stream.Slice(rows), value.Key{"n"}, Config{ChunkRows: 10, SpillDir: dir})
	// Pull a few rows then abandon without draining.
	for i := 0; i < 5; i++ {
		if _, err := r.Next(); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected spill dir empty after abandon, found %v", entries)
	}
}
