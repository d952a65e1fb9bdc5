// Package charge integrates per-event waveforms into charges and flags events whose
// charge falls outside the configured window.
package charge

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/ratescan/internal/models"
)

// Integrate returns the charge of one waveform. Signals are negative-going, so the
// charge is the negated sample sum.
func Integrate(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return -sum
}

// Thresholds is the accepted charge window.
type Thresholds struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Validate checks that the window is well formed.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.Min) || math.IsNaN(t.Max) {
		return fmt.Errorf("%w: thresholds must not be NaN", models.ErrConfiguration)
	}
	if t.Min > t.Max {
		return fmt.Errorf("%w: min_threshold %g exceeds max_threshold %g", models.ErrConfiguration, t.Min, t.Max)
	}
	return nil
}

// Classify compares a charge against the window. Both bounds are inclusive.
func Classify(charge float64, t Thresholds) models.Verdict {
	switch {
	case charge > t.Max:
		return models.AboveMax
	case charge < t.Min:
		return models.BelowMin
	default:
		return models.WithinRange
	}
}

// Reporter receives every out-of-range classification in event order.
type Reporter func(models.ChargeClassification)

// Result is the outcome of processing an event set.
type Result struct {
	Charges []float64                     `json:"charges" yaml:"charges"`
	Flagged []models.ChargeClassification `json:"flagged" yaml:"flagged"`
}

type options struct {
	reporter Reporter
	workers  int
}

// Option configures Process.
type Option func(*options)

// WithReporter installs a hook called for each flagged event.
func WithReporter(r Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithWorkers integrates events on up to n goroutines. Output order always follows input order.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// Process integrates every event, classifies the charges and collects the flagged ones.
func Process(events []models.ChargeEvent, t Thresholds, opts ...Option) (Result, error) {
	if err := t.Validate(); err != nil {
		return Result{}, err
	}
	o := options{workers: 1}
	for _, opt := range opts {
		opt(&o)
	}

	charges := integrateAll(events, o.workers)

	res := Result{Charges: charges}
	for i, q := range charges {
		v := Classify(q, t)
		if !v.Flagged() {
			continue
		}
		c := models.ChargeClassification{EventIndex: events[i].Index, Charge: q, Verdict: v}
		res.Flagged = append(res.Flagged, c)
		if o.reporter != nil {
			o.reporter(c)
		}
	}
	return res, nil
}

func integrateAll(events []models.ChargeEvent, workers int) []float64 {
	charges := make([]float64, len(events))
	if workers <= 1 || len(events) < 2*workers {
		for i := range events {
			charges[i] = Integrate(events[i].Samples)
		}
		return charges
	}

	chunk := (len(events) + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < len(events); lo += chunk {
		lo := lo
		hi := min(lo+chunk, len(events))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				charges[i] = Integrate(events[i].Samples)
			}
			return nil
		})
	}
	_ = g.Wait()
	return charges
}
