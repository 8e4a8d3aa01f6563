package opreduce

import (
	"testing"

	"github.com/kifbell/compgraph/errs"
	"github.com/kifbell/compgraph/stream"
	"github.com/kifbell/compgraph/value"
)

func count(column string) Reducer {
	return Func(func(keys value.Key, group stream.Reader) ([]value.Row, error) {
		rows, err := stream.Drain(group)
		if err != nil {
			return nil, err
		}
		n := int64(0)
		out := value.Row{}
		for _, row := range rows {
			n++
			for _, k := range keys {
				out[k] = row[k]
			}
		}
		out[column] = value.NewInt(n)
		return []value.Row{out}, nil
	})
}

func TestReduceGrouping(t *testing.T) {
	rows := []value.Row{
		{"t": value.NewString("hello")},
		{"t": value.NewString("hello")},
		{"t": value.NewString("world")},
	}
	r := New(stream.Slice(rows), count("count"), value.Key{"t"})
	out, err := stream.Drain(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(out), out)
	}
	if out[0]["t"].String() != "hello" || out[0]["count"].Int() != 2 {
		t.Fatalf("unexpected first group: %+v", out[0])
	}
	if out[1]["t"].String() != "world" || out[1]["count"].Int() != 1 {
		t.Fatalf("unexpected second group: %+v", out[1])
	}
}

func TestReduceEmptyInput(t *testing.T) {
	r := New(stream.Slice(nil), count("count"), value.Key{"t"})
	out, err := stream.Drain(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no groups, got %+v", out)
	}
}

func TestReduceOrderError(t *testing.T) {
	rows := []value.Row{
		{"k": value.NewInt(2)},
		{"k": value.NewInt(1)},
	}
	r := New(stream.Slice(rows), count("count"), value.Key{"k"})
	_, err := stream.Drain(r)
	if kind, ok := errs.Of(err); !ok || kind != errs.Order {
		t.Fatalf("expected OrderError, got %v", err)
	}
}
