package rowio

import (
	"encoding/json"

	"github.com/kifbell/compgraph/value"
)

// JSONArrayLine is the canonical parser used by the bundled examples:
// the file contains a single JSON array of row objects on one line,
// and every element is emitted as a row. Implementations replicating
// the bundled examples must accept this format bit-exactly.
func JSONArrayLine(line string) ([]value.Row, error) {
	var rows []map[string]value.Value
	if err := json.Unmarshal([]byte(line), &rows); err != nil {
		return nil, err
	}
	out := make([]value.Row, len(rows))
	for i, m := range rows {
		out[i] = value.Row(m)
	}
	return out, nil
}

// JSONLine treats each line as one JSON object and emits it as a
// single row; a more general contract than JSONArrayLine for files
// written one record per line.
func JSONLine(line string) ([]value.Row, error) {
	var m map[string]value.Value
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		return nil, err
	}
	return []value.Row{value.Row(m)}, nil
}
