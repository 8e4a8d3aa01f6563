// Package catalog collects the illustrative, out-of-core mapper and
// reducer library the engine ships with: tokenization, term
// frequency/TF-IDF assembly, numeric helpers, and a geo/speed pipeline
// lifted from the original example programs. None of it is part of
// the execution contract in opmap/opreduce/opjoin; every entry here is
// a leaf user-defined function obeying those contracts, the same
// relationship the teacher's bundled mappers (Lower, Trim, ...) have
// to its operator core.
package catalog

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kifbell/compgraph/opmap"
	"github.com/kifbell/compgraph/opreduce"
	"github.com/kifbell/compgraph/stream"
	"github.com/kifbell/compgraph/value"
)

// FilterPunctuation drops every Unicode punctuation rune from column,
// leaving whitespace and word runes untouched.
func FilterPunctuation(column string) opmap.Mapper {
	return opmap.Func(func(row value.Row) ([]value.Row, error) {
		s := row[column].String()
		var b strings.Builder
		b.Grow(len(s))
		for _, r := range s {
			if unicode.IsPunct(r) {
				continue
			}
			b.WriteRune(r)
		}
		out := row.Clone()
		out[column] = value.NewString(b.String())
		return []value.Row{out}, nil
	})
}

// LowerCase lower-cases column.
func LowerCase(column string) opmap.Mapper {
	return opmap.Func(func(row value.Row) ([]value.Row, error) {
		out := row.Clone()
		out[column] = value.NewString(strings.ToLower(row[column].String()))
		return []value.Row{out}, nil
	})
}

var wsRunRegexp = regexp.MustCompile(`\s`)

// Split tokenizes column on whitespace, emitting one output row per
// token with every other column carried through unchanged. Consecutive
// whitespace produces an empty token in the middle of the string (kept),
// while trailing whitespace produces no trailing empty token (suppressed):
// a sentinel byte is appended before splitting specifically to give the
// final split segment non-whitespace content to absorb, then stripped
// back off afterward, so the two cases come out different.
func Split(column string) opmap.Mapper {
	return opmap.Func(func(row value.Row) ([]value.Row, error) {
		tokens := splitTokens(row[column].String())
		out := make([]value.Row, 0, len(tokens))
		for _, tok := range tokens {
			clone := row.Clone()
			clone[column] = value.NewString(tok)
			out = append(out, clone)
		}
		return out, nil
	})
}

const splitSentinel = "\x00"

func splitTokens(s string) []string {
	parts := wsRunRegexp.Split(s+splitSentinel, -1)
	last := strings.TrimSuffix(parts[len(parts)-1], splitSentinel)
	if last == "" {
		return parts[:len(parts)-1]
	}
	parts[len(parts)-1] = last
	return parts
}

// Count emits one row per group carrying the key columns plus a count
// of rows in the group under resultColumn.
func Count(resultColumn string) opreduce.Reducer {
	return opreduce.Func(func(keys value.Key, group stream.Reader) ([]value.Row, error) {
		rows, err := stream.Drain(group)
		if err != nil {
			return nil, err
		}
		out := value.Row{}
		if len(rows) > 0 {
			for _, k := range keys {
				out[k] = rows[0][k]
			}
		}
		out[resultColumn] = value.NewInt(int64(len(rows)))
		return []value.Row{out}, nil
	})
}

// TermFrequency groups by keys (typically a document id) and, for each
// distinct value of wordColumn within the group, emits the key columns,
// the word, and its frequency (occurrences of the word over the total
// row count of the group) under resultColumn.
func TermFrequency(wordColumn, resultColumn string) opreduce.Reducer {
	return opreduce.Func(func(keys value.Key, group stream.Reader) ([]value.Row, error) {
		rows, err := stream.Drain(group)
		if err != nil {
			return nil, err
		}
		total := len(rows)
		if total == 0 {
			return nil, nil
		}
		counts := make(map[string]int64)
		var order []string
		for _, row := range rows {
			w := row[wordColumn].String()
			if _, seen := counts[w]; !seen {
				order = append(order, w)
			}
			counts[w]++
		}
		out := make([]value.Row, 0, len(order))
		for _, w := range order {
			res := value.Row{}
			for _, k := range keys {
				res[k] = rows[0][k]
			}
			res[wordColumn] = value.NewString(w)
			res[resultColumn] = value.NewFloat(float64(counts[w]) / float64(total))
			out = append(out, res)
		}
		return out, nil
	})
}

// NUnique counts the distinct values of column within each group.
func NUnique(column, resultColumn string) opreduce.Reducer {
	return opreduce.Func(func(keys value.Key, group stream.Reader) ([]value.Row, error) {
		rows, err := stream.Drain(group)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{})
		out := value.Row{}
		for _, row := range rows {
			seen[row[column].GoString()] = struct{}{}
		}
		if len(rows) > 0 {
			for _, k := range keys {
				out[k] = rows[0][k]
			}
		}
		out[resultColumn] = value.NewInt(int64(len(seen)))
		return []value.Row{out}, nil
	})
}

// Sum adds the values of column (Int or Float) within each group,
// emitting a Float total under resultColumn.
func Sum(column, resultColumn string) opreduce.Reducer {
	return opreduce.Func(func(keys value.Key, group stream.Reader) ([]value.Row, error) {
		rows, err := stream.Drain(group)
		if err != nil {
			return nil, err
		}
		var total float64
		out := value.Row{}
		for _, row := range rows {
			v := row[column]
			if v.Kind() == value.Int {
				total += float64(v.Int())
			} else {
				total += v.Float()
			}
		}
		if len(rows) > 0 {
			for _, k := range keys {
				out[k] = rows[0][k]
			}
		}
		out[resultColumn] = value.NewFloat(total)
		return []value.Row{out}, nil
	})
}
