// Package rowio implements the two source adapters that seed a graph
// with rows: a named iterator bound at run time, and a line-oriented
// file parsed by a caller-supplied LineParser. Both are grounded on
// the teacher's meta.Lister, which likewise pulls from an upstream
// enumerator under a mutex-guarded error-latching Pull, adapted here
// to the single-row stream.Reader contract instead of zbuf.Batch.
package rowio

import (
	"bufio"
	"os"

	"github.com/kifbell/compgraph/errs"
	"github.com/kifbell/compgraph/stream"
	"github.com/kifbell/compgraph/value"
)

// LineParser turns one line of text into zero or more rows. The
// canonical parser bundled with compgraph (JSONArrayLine) expects the
// whole file to be a single line holding a JSON array of row objects;
// a parser may equally treat each line as one JSON object, one CSV
// record, or anything else that maps text to rows.
type LineParser func(line string) ([]value.Row, error)

// Iterator builds a Reader over the row sequence bound to name in
// bindings. It fails with a ConstructionError if name has no binding.
func Iterator(name string, bindings stream.Bindings) (stream.Reader, error) {
	src, ok := bindings[name]
	if !ok {
		return nil, errs.New(errs.Construction, "rowio.Iterator", "unbound source name "+name)
	}
	return src(), nil
}

// File opens path and parses it line by line with parser, flattening
// each line's rows into the output sequence. The file is opened
// lazily on the first Next call so constructing the reader never
// blocks or fails before the stream is actually pulled.
func File(path string, parser LineParser) stream.Reader {
	return &fileReader{path: path, parser: parser}
}

type fileReader struct {
	path   string
	parser LineParser

	f        *os.File
	scanner  *bufio.Scanner
	pending  []value.Row
	opened   bool
	err      error
}

func (r *fileReader) open() error {
	f, err := os.Open(r.path)
	if err != nil {
		return errs.Wrap(errs.IO, "rowio.File", "opening "+r.path, err)
	}
	r.f = f
	r.scanner = bufio.NewScanner(f)
	r.scanner.Buffer(make([]byte, 0, 64*1024), 1<<24)
	r.opened = true
	return nil
}

func (r *fileReader) Next() (value.Row, error) {
	if r.err != nil {
		return nil, r.err
	}
	if !r.opened {
		if err := r.open(); err != nil {
			r.err = err
			return nil, err
		}
	}
	for {
		if len(r.pending) > 0 {
			row := r.pending[0]
			r.pending = r.pending[1:]
			return row, nil
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				r.err = errs.Wrap(errs.IO, "rowio.File", "reading "+r.path, err)
				return nil, r.err
			}
			return nil, nil
		}
		rows, err := r.parser(r.scanner.Text())
		if err != nil {
			r.err = errs.Wrap(errs.Parser, "rowio.File", "parsing "+r.path, err)
			return nil, r.err
		}
		r.pending = rows
	}
}

func (r *fileReader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	if err != nil {
		return errs.Wrap(errs.IO, "rowio.File", "closing "+r.path, err)
	}
	return nil
}
