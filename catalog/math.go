package catalog

import (
	"math"

	"github.com/kifbell/compgraph/opmap"
	"github.com/kifbell/compgraph/value"
)

func asFloat(v value.Value) float64 {
	if v.Kind() == value.Int {
		return float64(v.Int())
	}
	return v.Float()
}

// Product multiplies the named numeric columns together and writes
// the result under resultColumn.
func Product(columns []string, resultColumn string) opmap.Mapper {
	return opmap.Func(func(row value.Row) ([]value.Row, error) {
		total := 1.0
		for _, c := range columns {
			total *= asFloat(row[c])
		}
		out := row.Clone()
		out[resultColumn] = value.NewFloat(total)
		return []value.Row{out}, nil
	})
}

// NaturalLog writes math.Log(row[column]) under resultColumn.
func NaturalLog(column, resultColumn string) opmap.Mapper {
	return opmap.Func(func(row value.Row) ([]value.Row, error) {
		out := row.Clone()
		out[resultColumn] = value.NewFloat(math.Log(asFloat(row[column])))
		return []value.Row{out}, nil
	})
}

// Divide writes row[numerator]/row[denominator] under resultColumn.
func Divide(numerator, denominator, resultColumn string) opmap.Mapper {
	return opmap.Func(func(row value.Row) ([]value.Row, error) {
		out := row.Clone()
		out[resultColumn] = value.NewFloat(asFloat(row[numerator]) / asFloat(row[denominator]))
		return []value.Row{out}, nil
	})
}

// Predicate reports whether row should survive Filter.
type Predicate func(row value.Row) bool

// Filter keeps only rows for which pred returns true.
func Filter(pred Predicate) opmap.Mapper {
	return opmap.Func(func(row value.Row) ([]value.Row, error) {
		if !pred(row) {
			return nil, nil
		}
		return []value.Row{row}, nil
	})
}

// Project keeps only the named columns, dropping the rest.
func Project(columns []string) opmap.Mapper {
	return opmap.Func(func(row value.Row) ([]value.Row, error) {
		out := make(value.Row, len(columns))
		for _, c := range columns {
			if v, ok := row[c]; ok {
				out[c] = v
			}
		}
		return []value.Row{out}, nil
	})
}
