package features

import "math"

// Value is an optional float; Valid=false means missing
type Value struct {
	Float float64
	Valid bool
}

// Of wraps a present value
func Of(f float64) Value { return Value{Float: f, Valid: true} }

// Missing returns the missing value
func Missing() Value { return Value{} }

// Or returns the float or def when missing
func (v Value) Or(def float64) float64 {
	if !v.Valid {
		return def
	}
	return v.Float
}

// NaN returns the float or NaN when missing, for backends that expect the sentinel
func (v Value) NaN() float64 { return v.Or(math.NaN()) }

// RawInput carries the request-time measurements for one candidate
// ranges are not enforced here
type RawInput struct {
	PeriodDays float64 `json:"period_days"`
	DurationHr float64 `json:"duration_hr"`
	DepthPct   float64 `json:"depth_pct"`
	SNR        float64 `json:"snr"`
}

// Derive computes the value of n for in
// raw names pass through, dur_frac is computed, everything else is missing
func Derive(n Name, in RawInput) Value {
	switch n {
	case PeriodDays:
		return Of(in.PeriodDays)
	case DurationHr:
		return Of(in.DurationHr)
	case DepthPct:
		return Of(in.DepthPct)
	case SNR:
		return Of(in.SNR)
	case DurFrac:
		return durFrac(in.DurationHr, in.PeriodDays)
	default:
		return Missing()
	}
}

// durFrac is duration over period with both expressed in hours
// a non-positive period has no meaningful fraction
func durFrac(durationHr, periodDays float64) Value {
	if !(periodDays > 0) {
		return Missing()
	}
	f := durationHr / (24 * periodDays)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing()
	}
	return Of(f)
}
