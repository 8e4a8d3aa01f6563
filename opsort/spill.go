package opsort

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/kifbell/compgraph/errs"
	"github.com/kifbell/compgraph/value"
)

// Serializer selects the on-disk encoding for a spill segment. Both
// encodings round-trip the same Row values; the choice is purely an
// operational parameter per the spec's External sort configuration.
type Serializer int

const (
	// JSONLines writes one JSON object per line, human-inspectable and
	// compatible with the bundled examples' JSON-per-line convention.
	JSONLines Serializer = iota
	// LengthPrefixedBinary frames each row with a little-endian uint32
	// byte length ahead of its JSON encoding, avoiding the need to scan
	// for newlines and tolerating row content containing "\n".
	LengthPrefixedBinary
)

type segmentWriter interface {
	Write(row value.Row) error
	Close() error
}

type segmentReader interface {
	// Read returns the next row, or (nil, nil) at end of segment.
	Read() (value.Row, error)
	Close() error
}

func newSegmentWriter(f *os.File, ser Serializer) segmentWriter {
	bw := bufio.NewWriter(f)
	switch ser {
	case LengthPrefixedBinary:
		return &binaryWriter{f: f, w: bw}
	default:
		return &jsonWriter{f: f, w: bw}
	}
}

func newSegmentReader(f *os.File, ser Serializer) segmentReader {
	switch ser {
	case LengthPrefixedBinary:
		return &binaryReader{f: f, r: bufio.NewReader(f)}
	default:
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<24)
		return &jsonReader{f: f, sc: sc}
	}
}

type jsonWriter struct {
	f *os.File
	w *bufio.Writer
}

func (j *jsonWriter) Write(row value.Row) error {
	b, err := json.Marshal(map[string]value.Value(row))
	if err != nil {
		return errs.Wrap(errs.IO, "sort.spill", "encoding row", err)
	}
	if _, err := j.w.Write(b); err != nil {
		return errs.Wrap(errs.IO, "sort.spill", "writing segment", err)
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return errs.Wrap(errs.IO, "sort.spill", "writing segment", err)
	}
	return nil
}

func (j *jsonWriter) Close() error {
	if err := j.w.Flush(); err != nil {
		return errs.Wrap(errs.IO, "sort.spill", "flushing segment", err)
	}
	if err := j.f.Close(); err != nil {
		return errs.Wrap(errs.IO, "sort.spill", "closing segment", err)
	}
	return nil
}

type jsonReader struct {
	f  *os.File
	sc *bufio.Scanner
}

func (j *jsonReader) Read() (value.Row, error) {
	if !j.sc.Scan() {
		if err := j.sc.Err(); err != nil {
			return nil, errs.Wrap(errs.IO, "sort.spill", "reading segment", err)
		}
		return nil, nil
	}
	var m map[string]value.Value
	if err := json.Unmarshal(j.sc.Bytes(), &m); err != nil {
		return nil, errs.Wrap(errs.IO, "sort.spill", "decoding segment", err)
	}
	return value.Row(m), nil
}

func (j *jsonReader) Close() error {
	return j.f.Close()
}

type binaryWriter struct {
	f *os.File
	w *bufio.Writer
}

func (b *binaryWriter) Write(row value.Row) error {
	body, err := json.Marshal(map[string]value.Value(row))
	if err != nil {
		return errs.Wrap(errs.IO, "sort.spill", "encoding row", err)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := b.w.Write(lenBuf[:]); err != nil {
		return errs.Wrap(errs.IO, "sort.spill", "writing segment", err)
	}
	if _, err := b.w.Write(body); err != nil {
		return errs.Wrap(errs.IO, "sort.spill", "writing segment", err)
	}
	return nil
}

func (b *binaryWriter) Close() error {
	if err := b.w.Flush(); err != nil {
		return errs.Wrap(errs.IO, "sort.spill", "flushing segment", err)
	}
	if err := b.f.Close(); err != nil {
		return errs.Wrap(errs.IO, "sort.spill", "closing segment", err)
	}
	return nil
}

type binaryReader struct {
	f *os.File
	r *bufio.Reader
}

func (b *binaryReader) Read() (value.Row, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(b.r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errs.Wrap(errs.IO, "sort.spill", "reading segment length", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(b.r, body); err != nil {
		return nil, errs.Wrap(errs.IO, "sort.spill", "reading segment body", err)
	}
	var m map[string]value.Value
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, errs.Wrap(errs.IO, "sort.spill", "decoding segment", err)
	}
	return value.Row(m), nil
}

func (b *binaryReader) Close() error {
	return b.f.Close()
}
