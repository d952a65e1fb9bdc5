package models

// Verdict is the outcome of comparing a charge against the configured thresholds.
type Verdict string

const (
	WithinRange Verdict = "within_range"
	AboveMax    Verdict = "above_max"
	BelowMin    Verdict = "below_min"
)

// Flagged reports whether the verdict is one of the out-of-range cases.
func (v Verdict) Flagged() bool {
	return v == AboveMax || v == BelowMin
}

// ChargeEvent is one triggered acquisition on a single channel.
type ChargeEvent struct {
	Index             int       `json:"index" yaml:"index"`
	TriggerTimeMicros uint64    `json:"trigger_time_us" yaml:"trigger_time_us"`
	Samples           []float64 `json:"-" yaml:"-"`
}

// ChargeClassification pairs a charge with its boundary verdict.
type ChargeClassification struct {
	EventIndex int     `json:"event_index" yaml:"event_index"`
	Charge     float64 `json:"charge" yaml:"charge"`
	Verdict    Verdict `json:"verdict" yaml:"verdict"`
}
