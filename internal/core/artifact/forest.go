package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"exoseek/internal/core/features"

	"github.com/klauspost/compress/gzip"
)

// ForestFormat is the expected value of the format field
const ForestFormat = "exoseek-forest"

// ForestDoc is the on-disk layout of an exported random forest pipeline
// (median imputer followed by a sklearn-style tree ensemble)
type ForestDoc struct {
	Format        string     `json:"format"`
	Version       int        `json:"version"`
	Features      []string   `json:"features,omitempty"`
	Imputer       ImputerDoc `json:"imputer"`
	NClasses      int        `json:"n_classes"`
	PositiveClass int        `json:"positive_class"`
	Trees         []TreeDoc  `json:"trees"`
}

// ImputerDoc holds per column fill values; null means the column had no observed values
type ImputerDoc struct {
	Strategy   string     `json:"strategy"`
	Statistics []*float64 `json:"statistics"`
}

// TreeDoc mirrors the flat arrays of a fitted decision tree
// a node is a leaf when children_left is -1
type TreeDoc struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Forest is a validated, immutable tree ensemble
type Forest struct {
	names []features.Name
	fill  []features.Value
	pos   int
	trees []tree
}

type tree struct {
	left, right []int
	feature     []int
	threshold   []float64
	// leafProb holds the normalized positive-class probability for leaves, NaN for splits
	leafProb []float64
}

var _ Model = (*Forest)(nil)

func loadForestFile(path string) (*Forest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrFormat, err)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}
	return DecodeForest(r)
}

// DecodeForest reads and validates a forest document
func DecodeForest(r io.Reader) (*Forest, error) {
	var doc ForestDoc
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return NewForest(doc)
}

// NewForest validates doc and builds the scoring form
func NewForest(doc ForestDoc) (*Forest, error) {
	if doc.Format != ForestFormat {
		return nil, fmt.Errorf("%w: format %q", ErrFormat, doc.Format)
	}
	if doc.Imputer.Strategy != "" && doc.Imputer.Strategy != "median" {
		return nil, fmt.Errorf("%w: imputer strategy %q", ErrFormat, doc.Imputer.Strategy)
	}
	width := len(doc.Imputer.Statistics)
	if width == 0 {
		return nil, fmt.Errorf("%w: empty imputer statistics", ErrFormat)
	}
	if len(doc.Features) > 0 && len(doc.Features) != width {
		return nil, fmt.Errorf("%w: %d features but %d imputer statistics", ErrFormat, len(doc.Features), width)
	}
	nc := doc.NClasses
	if nc == 0 {
		nc = 2
	}
	if doc.PositiveClass < 0 || doc.PositiveClass >= nc {
		return nil, fmt.Errorf("%w: positive_class %d out of range", ErrFormat, doc.PositiveClass)
	}
	if len(doc.Trees) == 0 {
		return nil, fmt.Errorf("%w: no trees", ErrFormat)
	}

	out := &Forest{pos: doc.PositiveClass}
	if len(doc.Features) > 0 {
		out.names, _ = features.ParseList(doc.Features)
	}
	out.fill = make([]features.Value, width)
	for i, s := range doc.Imputer.Statistics {
		if s != nil && !math.IsNaN(*s) {
			out.fill[i] = features.Of(*s)
		}
	}

	out.trees = make([]tree, len(doc.Trees))
	for i, td := range doc.Trees {
		t, err := buildTree(td, width, nc, doc.PositiveClass)
		if err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", ErrFormat, i, err)
		}
		out.trees[i] = t
	}
	return out, nil
}

func buildTree(td TreeDoc, width, nc, pos int) (tree, error) {
	n := len(td.ChildrenLeft)
	if n == 0 {
		return tree{}, fmt.Errorf("no nodes")
	}
	if len(td.ChildrenRight) != n || len(td.Feature) != n || len(td.Threshold) != n || len(td.Value) != n {
		return tree{}, fmt.Errorf("array lengths differ")
	}
	t := tree{
		left:      td.ChildrenLeft,
		right:     td.ChildrenRight,
		feature:   td.Feature,
		threshold: td.Threshold,
		leafProb:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		l, r := td.ChildrenLeft[i], td.ChildrenRight[i]
		if l == -1 {
			if r != -1 {
				return tree{}, fmt.Errorf("node %d: half leaf", i)
			}
			if len(td.Value[i]) != nc {
				return tree{}, fmt.Errorf("node %d: %d class values, want %d", i, len(td.Value[i]), nc)
			}
			var sum float64
			for _, c := range td.Value[i] {
				if c < 0 || math.IsNaN(c) {
					return tree{}, fmt.Errorf("node %d: bad class value", i)
				}
				sum += c
			}
			if sum == 0 {
				return tree{}, fmt.Errorf("node %d: empty leaf", i)
			}
			t.leafProb[i] = td.Value[i][pos] / sum
			continue
		}
		// children always sit after their parent, which also rules out cycles
		if l <= i || l >= n || r <= i || r >= n {
			return tree{}, fmt.Errorf("node %d: child index out of range", i)
		}
		if f := td.Feature[i]; f < 0 || f >= width {
			return tree{}, fmt.Errorf("node %d: feature %d out of range", i, f)
		}
		t.leafProb[i] = math.NaN()
	}
	return t, nil
}

// PredictProba implements Model
func (f *Forest) PredictProba(xs []features.Value) (float64, error) {
	if len(xs) != len(f.fill) {
		return 0, fmt.Errorf("%w: got %d columns, model expects %d", ErrShape, len(xs), len(f.fill))
	}
	row := make([]float64, len(xs))
	for i, v := range xs {
		switch {
		case v.Valid && !math.IsNaN(v.Float):
			row[i] = v.Float
		case f.fill[i].Valid:
			row[i] = f.fill[i].Float
		default:
			return 0, fmt.Errorf("artifact: column %d is missing and has no fill value", i)
		}
	}

	var sum float64
	for i := range f.trees {
		sum += f.trees[i].predict(row)
	}
	return sum / float64(len(f.trees)), nil
}

func (t *tree) predict(row []float64) float64 {
	node := 0
	for t.left[node] != -1 {
		// sklearn casts X to float32 before comparing against the float64 split
		if float64(float32(row[t.feature[node]])) <= t.threshold[node] {
			node = t.left[node]
		} else {
			node = t.right[node]
		}
	}
	return t.leafProb[node]
}

// NumFeatures implements Model
func (f *Forest) NumFeatures() int { return len(f.fill) }

// Features implements Model
func (f *Forest) Features() []features.Name { return append([]features.Name(nil), f.names...) }

// Kind implements Model
func (f *Forest) Kind() string { return "forest" }

// NumTrees returns the ensemble size
func (f *Forest) NumTrees() int { return len(f.trees) }
