// Package features holds the fixed TOI feature vocabulary and the derivation rules
// that turn raw transit measurements into model inputs
package features

import "strings"

// Name identifies a single model input column
type Name string

// Known feature names
const (
	PeriodDays Name = "period_days"
	DurationHr Name = "duration_hr"
	DepthPct   Name = "depth_pct"
	SNR        Name = "snr"
	StTmag     Name = "st_tmag"
	StTeff     Name = "st_teff"
	StLogg     Name = "st_logg"
	StRad      Name = "st_rad"
	PlRade     Name = "pl_rade"
	DurFrac    Name = "dur_frac"
)

// Kind classifies how a feature is obtained at request time
type Kind uint8

const (
	// KindUnknown is any name outside the vocabulary
	KindUnknown Kind = iota
	// KindRaw features come straight from the request
	KindRaw
	// KindDerived features are computed from raw inputs
	KindDerived
	// KindContext features exist in training data but are never supplied at request time
	KindContext
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindDerived:
		return "derived"
	case KindContext:
		return "context"
	default:
		return "unknown"
	}
}

// Spec describes one catalog entry
type Spec struct {
	Name Name
	Kind Kind
	Desc string
}

var catalog = []Spec{
	{PeriodDays, KindRaw, "orbital period in days"},
	{DurationHr, KindRaw, "transit duration in hours"},
	{DepthPct, KindRaw, "transit depth in percent"},
	{SNR, KindRaw, "signal to noise ratio"},
	{StTmag, KindContext, "TESS magnitude of the host star"},
	{StTeff, KindContext, "stellar effective temperature"},
	{StLogg, KindContext, "stellar surface gravity"},
	{StRad, KindContext, "stellar radius"},
	{PlRade, KindContext, "planet radius in earth radii"},
	{DurFrac, KindDerived, "fraction of the orbit spent in transit"},
}

var index = func() map[Name]Spec {
	m := make(map[Name]Spec, len(catalog))
	for _, s := range catalog {
		m[s.Name] = s
	}
	return m
}()

// defaultList is used whenever the trained list cannot be read from metadata
var defaultList = []Name{PeriodDays, DurationHr, DepthPct, SNR, DurFrac}

// DefaultList returns a fresh copy of the fallback feature list
func DefaultList() []Name {
	return append([]Name(nil), defaultList...)
}

// All returns every catalog entry in vocabulary order
func All() []Spec {
	return append([]Spec(nil), catalog...)
}

// Lookup returns the catalog entry for n
func Lookup(n Name) (Spec, bool) {
	s, ok := index[n]
	return s, ok
}

// KindOf returns the kind of n, KindUnknown when n is not in the vocabulary
func KindOf(n Name) Kind {
	return index[n].Kind
}

// Known reports whether n is part of the vocabulary
func Known(n Name) bool {
	_, ok := index[n]
	return ok
}

// ParseList converts raw strings into names preserving order
// names outside the vocabulary are kept and also returned in unknown
func ParseList(xs []string) (names []Name, unknown []Name) {
	names = make([]Name, 0, len(xs))
	for _, x := range xs {
		n := Name(strings.TrimSpace(x))
		names = append(names, n)
		if !Known(n) {
			unknown = append(unknown, n)
		}
	}
	return names, unknown
}

// Strings converts names back to plain strings
func Strings(ns []Name) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = string(n)
	}
	return out
}

// Equal reports whether two lists hold the same names in the same order
func Equal(a, b []Name) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
