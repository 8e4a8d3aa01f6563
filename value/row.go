package value

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/kifbell/compgraph/errs"
)

// Row is a finite mapping from column name to Value. It is the unit of
// data that flows between operators.
type Row map[string]Value

// Clone makes a shallow, independent copy of r so a downstream operator
// can mutate its own copy without aliasing the upstream's row (per the
// spec's "operators may freely mutate rows they receive... safe
// implementations copy on write").
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Columns returns the row's column names in sorted order, useful for
// deterministic diagnostics and tests.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Key is an ordered sequence of column names used to sort, group, or
// join rows. Two rows compare by their Key under the same tuple via
// CompareKeys.
type Key []string

// Extract returns the ordered values of row under key k. A name absent
// from row is a SchemaError, matching the spec's "missing names are an
// error" rule for key-tuple lookups.
func (k Key) Extract(row Row) ([]Value, error) {
	vals := make([]Value, len(k))
	for i, name := range k {
		v, ok := row[name]
		if !ok {
			return nil, errs.New(errs.Schema, "key.extract", "missing key column "+strconv.Quote(name))
		}
		vals[i] = v
	}
	return vals, nil
}

// CompareKeys lexicographically compares two equal-length key-value
// slices, as produced by Key.Extract.
func CompareKeys(a, b []Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// MarshalJSON renders a Value the way the bundled examples' canonical
// parser expects rows to be written back out: numbers without a
// distinguishing tag, strings as JSON strings, lists as JSON arrays.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case Null:
		return []byte("null"), nil
	case Int:
		return strconv.AppendInt(nil, v.i, 10), nil
	case Float:
		b := strconv.AppendFloat(nil, v.f, 'g', -1, 64)
		if !bytes.ContainsAny(b, ".eEnN") {
			// Keep integral floats distinguishable from ints on decode.
			b = append(b, ".0"...)
		}
		return b, nil
	case String:
		return json.Marshal(v.s)
	case Bool:
		if v.b {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case List:
		return json.Marshal(v.list)
	default:
		return nil, errs.New(errs.Parser, "value.marshal", "unknown value kind")
	}
}

// UnmarshalJSON decodes a single JSON value into its tagged Value,
// distinguishing integers from floats by the absence of a fractional
// or exponent part, matching the canonical JSON-array-of-rows file
// format described in the spec's File format section.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*v = NewNull()
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errs.Wrap(errs.Parser, "value.unmarshal", "invalid string", err)
		}
		*v = NewString(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return errs.Wrap(errs.Parser, "value.unmarshal", "invalid bool", err)
		}
		*v = NewBool(b)
		return nil
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return errs.Wrap(errs.Parser, "value.unmarshal", "invalid list", err)
		}
		list := make([]Value, len(raw))
		for i, r := range raw {
			if err := list[i].UnmarshalJSON(r); err != nil {
				return err
			}
		}
		*v = NewList(list)
		return nil
	default:
		return unmarshalNumber(v, data)
	}
}

func unmarshalNumber(v *Value, data []byte) error {
	if i, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*v = NewInt(i)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return errs.Wrap(errs.Parser, "value.unmarshal", "invalid number", err)
	}
	*v = NewFloat(f)
	return nil
}
