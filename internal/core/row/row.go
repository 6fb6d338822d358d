// Package row builds model-ready feature vectors in trained column order
package row

import "exoseek/internal/core/features"

// Cell is one positional entry of a Vector
type Cell struct {
	Name  features.Name
	Value features.Value
}

// Vector is an ordered feature row; position i corresponds to list[i] it was built from
type Vector []Cell

// Build produces one cell per name in list, in list order
// no imputation happens here; the artifact owns its fill policy
func Build(in features.RawInput, list []features.Name) Vector {
	v := make(Vector, len(list))
	for i, n := range list {
		v[i] = Cell{Name: n, Value: features.Derive(n, in)}
	}
	return v
}

// Names returns the column names in order
func (v Vector) Names() []features.Name {
	out := make([]features.Name, len(v))
	for i, c := range v {
		out[i] = c.Name
	}
	return out
}

// Values returns the optional values in order
func (v Vector) Values() []features.Value {
	out := make([]features.Value, len(v))
	for i, c := range v {
		out[i] = c.Value
	}
	return out
}

// Floats returns plain floats with missing cells replaced by missing
func (v Vector) Floats(missing float64) []float64 {
	out := make([]float64, len(v))
	for i, c := range v {
		out[i] = c.Value.Or(missing)
	}
	return out
}

// Present counts cells that carry a value
func (v Vector) Present() int {
	n := 0
	for _, c := range v {
		if c.Value.Valid {
			n++
		}
	}
	return n
}
