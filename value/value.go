// Package value implements the dynamically-typed Row and Value model
// that flows through every compgraph operator: a row is a mapping from
// column name to a tagged-union Value, and a key-tuple is an ordered
// list of column names used to sort, group, or join rows.
//
// The tagged union mirrors the teacher's vcache shadow/union pattern
// (one Kind tag selecting which field of the struct is meaningful)
// but trades the teacher's lazy columnar decoding for eager, per-row
// storage since compgraph rows are small and short-lived.
package value

import (
	"bytes"
	"fmt"
	"math"
)

// Kind tags which field of a Value is populated.
type Kind uint8

const (
	Null Kind = iota
	Int
	Float
	String
	Bool
	List
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case Bool:
		return "bool"
	case List:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the dynamic row value types this
// library supports: integer, floating-point, string, boolean, null,
// and an ordered sequence of values (used for coordinate pairs and
// similar small composites). A Value is immutable once constructed;
// mutating a row replaces its Value entries rather than mutating them
// in place.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
	list []Value
}

func NewNull() Value             { return Value{kind: Null} }
func NewInt(i int64) Value       { return Value{kind: Int, i: i} }
func NewFloat(f float64) Value   { return Value{kind: Float, f: f} }
func NewString(s string) Value   { return Value{kind: String, s: s} }
func NewBool(b bool) Value       { return Value{kind: Bool, b: b} }
func NewList(vs []Value) Value   { return Value{kind: List, list: vs} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }

// Int returns the underlying integer. Callers must check Kind() == Int
// first; this follows the teacher's convention of unchecked accessors
// paired with a Kind discriminant (cf. vcache's shadow types).
func (v Value) Int() int64      { return v.i }
func (v Value) Float() float64  { return v.f }
func (v Value) String() string  { return v.s }
func (v Value) Bool() bool      { return v.b }
func (v Value) List() []Value   { return v.list }

// GoString formats a Value for diagnostics and error messages;
// catalog.NUnique also calls it once per row as its distinct-value key.
func (v Value) GoString() string {
	switch v.kind {
	case Null:
		return "null"
	case Int:
		return fmt.Sprintf("%d", v.i)
	case Float:
		return fmt.Sprintf("%g", v.f)
	case String:
		return fmt.Sprintf("%q", v.s)
	case Bool:
		return fmt.Sprintf("%t", v.b)
	case List:
		return fmt.Sprintf("%v", v.list)
	default:
		return "<invalid>"
	}
}

// Equal reports whether two values have the same kind and content.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Int:
		return a.i == b.i
	case Float:
		return a.f == b.f || (math.IsNaN(a.f) && math.IsNaN(b.f))
	case String:
		return a.s == b.s
	case Bool:
		return a.b == b.b
	case List:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two values. Values of the same kind compare by the
// spec's natural ordering for that tag (numeric, lexicographic for
// strings, false<true for booleans, elementwise for lists). Values of
// different kinds are not required by the spec to have a defined
// ordering ("ordering between rows is defined only via explicit
// key-tuples... [where] two values are comparable iff they share a
// tag"); rather than panic on a malformed pipeline, Compare falls back
// to ordering by Kind so that external sort and reduce still produce a
// deterministic, total order (see DESIGN.md "cross-kind comparison").
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case Null:
		return 0
	case Int:
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		default:
			return 0
		}
	case Float:
		switch {
		case a.f < b.f:
			return -1
		case a.f > b.f:
			return 1
		default:
			return 0
		}
	case String:
		return bytes.Compare([]byte(a.s), []byte(b.s))
	case Bool:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case List:
		n := len(a.list)
		if len(b.list) < n {
			n = len(b.list)
		}
		for i := 0; i < n; i++ {
			if c := Compare(a.list[i], b.list[i]); c != 0 {
				return c
			}
		}
		return len(a.list) - len(b.list)
	default:
		return 0
	}
}
