package catalog

import (
	"math"
	"time"

	"github.com/kifbell/compgraph/errs"
	"github.com/kifbell/compgraph/opmap"
	"github.com/kifbell/compgraph/value"
)

// earthRadiusKm is the mean Earth radius used by CalcHaversine.
const earthRadiusKm = 6371.0

// ParseTime parses row[column] with layout (as accepted by time.Parse)
// and writes the resulting Unix timestamp, in seconds, under
// resultColumn.
func ParseTime(column, resultColumn, layout string) opmap.Mapper {
	return opmap.Func(func(row value.Row) ([]value.Row, error) {
		t, err := time.Parse(layout, row[column].String())
		if err != nil {
			return nil, errs.Wrap(errs.User, "catalog.ParseTime", "parsing timestamp", err)
		}
		out := row.Clone()
		out[resultColumn] = value.NewFloat(float64(t.Unix()))
		return []value.Row{out}, nil
	})
}

// CalcHaversine reads two coordinate pairs (lists of [latitude,
// longitude] in degrees) from fromColumn and toColumn and writes the
// great-circle distance between them, in kilometers, under
// resultColumn.
func CalcHaversine(fromColumn, toColumn, resultColumn string) opmap.Mapper {
	return opmap.Func(func(row value.Row) ([]value.Row, error) {
		from := row[fromColumn].List()
		to := row[toColumn].List()
		if len(from) != 2 || len(to) != 2 {
			return nil, errs.New(errs.User, "catalog.CalcHaversine", "coordinate column must be a [lat, lon] pair")
		}
		dist := haversineKm(asFloat(from[0]), asFloat(from[1]), asFloat(to[0]), asFloat(to[1]))
		out := row.Clone()
		out[resultColumn] = value.NewFloat(dist)
		return []value.Row{out}, nil
	})
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	phi1, phi2 := toRad(lat1), toRad(lat2)
	dPhi := toRad(lat2 - lat1)
	dLambda := toRad(lon2 - lon1)
	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}
