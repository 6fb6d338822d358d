package domain

import "time"

// PredictionRecord is one audited scoring call
type PredictionRecord struct {
	ID          string
	CreatedAt   time.Time
	Generation  uint64
	RequestID   string
	PeriodDays  float64
	DurationHr  float64
	DepthPct    float64
	SNR         float64
	Features    []string
	Probability *float64 // nil when scoring failed
	Label       string
	Error       string
}

// LoadEvent is one published registry snapshot
type LoadEvent struct {
	Generation    uint64
	LoadedAt      time.Time
	Loaded        bool
	Kind          string
	FeatureSource string
	Features      []string
	ArtifactPath  string
	Error         string
}

// RecentRow is the wire shape for audited predictions
type RecentRow struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Generation  uint64    `json:"generation"`
	PeriodDays  float64   `json:"period_days"`
	DurationHr  float64   `json:"duration_hr"`
	DepthPct    float64   `json:"depth_pct"`
	SNR         float64   `json:"snr"`
	Features    []string  `json:"features"`
	Probability *float64  `json:"probability,omitempty"`
	Label       string    `json:"label,omitempty"`
	Error       string    `json:"error,omitempty"`
}
