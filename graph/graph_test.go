package graph

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kifbell/compgraph/catalog"
	"github.com/kifbell/compgraph/diag"
	"github.com/kifbell/compgraph/errs"
	"github.com/kifbell/compgraph/opjoin"
	"github.com/kifbell/compgraph/opsort"
	"github.com/kifbell/compgraph/stream"
	"github.com/kifbell/compgraph/value"
)

func TestWordCountEndToEnd(t *testing.T) {
	rows := []value.Row{
		{"t": value.NewString("hello, WORLD")},
		{"t": value.NewString("hello world!")},
	}
	g := FromIter("docs").
		Map(catalog.FilterPunctuation("t")).
		Map(catalog.LowerCase("t")).
		Map(catalog.Split("t")).
		Sort(value.Key{"t"}, opsort.Config{}).
		Reduce(catalog.Count("count"), value.Key{"t"}).
		Sort(value.Key{"count", "t"}, opsort.Config{})

	bindings := stream.Bindings{"docs": func() stream.Reader { return stream.Slice(rows) }}
	r, err := g.Run(bindings)
	if err != nil {
		t.Fatal(err)
	}
	out, err := stream.Drain(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(out), out)
	}
	if out[0]["t"].String() != "hello" || out[0]["count"].Int() != 2 {
		t.Fatalf("unexpected first row: %+v", out[0])
	}
	if out[1]["t"].String() != "world" || out[1]["count"].Int() != 2 {
		t.Fatalf("unexpected second row: %+v", out[1])
	}
}

func TestWithMetricsCountsRowsPerOperator(t *testing.T) {
	rows := []value.Row{
		{"t": value.NewString("hello, WORLD")},
		{"t": value.NewString("hello world!")},
	}
	m := diag.NewMetrics()
	g := FromIter("docs").
		Map(catalog.FilterPunctuation("t")).
		Map(catalog.LowerCase("t")).
		Map(catalog.Split("t")).
		Sort(value.Key{"t"}, opsort.Config{}).
		Reduce(catalog.Count("count"), value.Key{"t"}).
		WithMetrics(m)

	bindings := stream.Bindings{"docs": func() stream.Reader { return stream.Slice(rows) }}
	r, err := g.Run(bindings)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := stream.Drain(r); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(m.RowsEmitted.WithLabelValues("source")); got != 2 {
		t.Fatalf("expected 2 source rows counted, got %v", got)
	}
	// Three Map stages share the "map" label: FilterPunctuation and
	// LowerCase each pass both rows through 1:1 (2+2), then Split
	// fans each of those 2 rows out to 2 tokens (4), for 8 total.
	if got := testutil.ToFloat64(m.RowsEmitted.WithLabelValues("map")); got != 8 {
		t.Fatalf("expected 8 map rows counted across all three Map stages, got %v", got)
	}
	if got := testutil.ToFloat64(m.RowsEmitted.WithLabelValues("sort")); got != 4 {
		t.Fatalf("expected 4 sort rows counted, got %v", got)
	}
	if got := testutil.ToFloat64(m.RowsEmitted.WithLabelValues("reduce")); got != 2 {
		t.Fatalf("expected 2 reduce rows counted (hello, world), got %v", got)
	}
}

func TestConstructionErrorOnSourcelessGraph(t *testing.T) {
	var g Graph
	g = g.Map(catalog.LowerCase("t"))
	_, err := g.Run(nil)
	if kind, ok := errs.Of(err); !ok || kind != errs.Construction {
		t.Fatalf("expected ConstructionError, got %v", err)
	}
}

func TestConstructionErrorOnMissingBinding(t *testing.T) {
	g := FromIter("docs")
	_, err := g.Run(stream.Bindings{})
	if kind, ok := errs.Of(err); !ok || kind != errs.Construction {
		t.Fatalf("expected ConstructionError, got %v", err)
	}
}

func TestOrderErrorDetectedAtRun(t *testing.T) {
	rows := []value.Row{
		{"k": value.NewInt(2)},
		{"k": value.NewInt(1)},
	}
	g := FromIter("in").Reduce(catalog.Count("count"), value.Key{"k"})
	bindings := stream.Bindings{"in": func() stream.Reader { return stream.Slice(rows) }}
	r, err := g.Run(bindings)
	if err != nil {
		t.Fatal(err)
	}
	_, err = stream.Drain(r)
	if kind, ok := errs.Of(err); !ok || kind != errs.Order {
		t.Fatalf("expected OrderError, got %v", err)
	}
}

func TestJoinThroughGraphOwnsRightSubgraph(t *testing.T) {
	left := []value.Row{
		{"k": value.NewInt(1), "v": value.NewString("a")},
		{"k": value.NewInt(2), "v": value.NewString("b")},
	}
	right := []value.Row{
		{"k": value.NewInt(1), "v": value.NewString("x")},
		{"k": value.NewInt(2), "v": value.NewString("y")},
	}
	rightGraph := FromIter("right")
	g := FromIter("left").Join(opjoin.Config{Strategy: opjoin.Inner}, rightGraph, value.Key{"k"})

	bindings := stream.Bindings{
		"left":  func() stream.Reader { return stream.Slice(left) },
		"right": func() stream.Reader { return stream.Slice(right) },
	}

	// Running the same graph description twice must not leak state
	// between runs (no shared join-subgraph stack).
	for i := 0; i < 2; i++ {
		r, err := g.Run(bindings)
		if err != nil {
			t.Fatal(err)
		}
		out, err := stream.Drain(r)
		if err != nil {
			t.Fatal(err)
		}
		if len(out) != 2 {
			t.Fatalf("run %d: expected 2 rows, got %+v", i, out)
		}
	}
}
