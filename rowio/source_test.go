package rowio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kifbell/compgraph/errs"
	"github.com/kifbell/compgraph/stream"
	"github.com/kifbell/compgraph/value"
)

func TestIteratorUnboundName(t *testing.T) {
	_, err := Iterator("missing", stream.Bindings{})
	if kind, ok := errs.Of(err); !ok || kind != errs.Construction {
		t.Fatalf("expected ConstructionError, got %v", err)
	}
}

func TestIteratorBound(t *testing.T) {
	bindings := stream.Bindings{
		"rows": func() stream.Reader {
			return stream.Slice([]value.Row{{"a": value.NewInt(1)}})
		},
	}
	r, err := Iterator("rows", bindings)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := stream.Drain(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["a"].Int() != 1 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestFileJSONArrayLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.json")
	if err := os.WriteFile(path, []byte(`[{"t":"hello, WORLD"},{"t":"hello world!"}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	r := File(path, JSONArrayLine)
	rows, err := stream.Drain(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["t"].String() != "hello, WORLD" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
}

func TestFileMissingIsIOError(t *testing.T) {
	r := File("/no/such/file.json", JSONArrayLine)
	_, err := r.Next()
	if kind, ok := errs.Of(err); !ok || kind != errs.IO {
		t.Fatalf("expected IoError, got %v", err)
	}
}

func TestFileParserError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	r := File(path, JSONArrayLine)
	_, err := r.Next()
	if kind, ok := errs.Of(err); !ok || kind != errs.Parser {
		t.Fatalf("expected ParserError, got %v", err)
	}
}
