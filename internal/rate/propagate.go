// Package rate derives event rates and their Poisson uncertainties from counted
// measurements, and evaluates the rate model families.
package rate

import (
	"fmt"
	"math"

	"github.com/rewired-gh/ratescan/internal/models"
)

// TimeUnitScale converts acquisition time units (microseconds) to seconds.
const TimeUnitScale = 1e-6

// Series holds the per-point quantities derived from counts and live times.
// All slices share the index of the input series.
type Series struct {
	Rates    []models.RateObservation
	LogRates []models.LogRateObservation
}

// Values returns ln(rate) and sigma(ln(rate)) as plain slices for the fitter.
func (s Series) Values() (logRate, sigma []float64) {
	logRate = make([]float64, len(s.LogRates))
	sigma = make([]float64, len(s.LogRates))
	for i, lr := range s.LogRates {
		logRate[i] = lr.LogRate
		sigma[i] = lr.LogRateUncertainty
	}
	return logRate, sigma
}

// Observe derives the rate of a single measurement. Live time is treated as exact.
func Observe(count int64, liveTimeMicros float64) models.RateObservation {
	seconds := liveTimeMicros * TimeUnitScale
	return models.RateObservation{
		Rate:            float64(count) / seconds,
		RateUncertainty: math.Sqrt(float64(count)) / seconds,
	}
}

// Propagate computes rate, rate uncertainty, log rate and log-rate uncertainty for
// every measurement. A zero count makes ln(rate) undefined and fails with ErrDomain;
// such points must be excluded by the caller, they are never clamped.
func Propagate(counts []int64, liveTimes []float64) (Series, error) {
	if len(counts) != len(liveTimes) {
		return Series{}, fmt.Errorf("%w: %d event counts but %d live times",
			models.ErrConfiguration, len(counts), len(liveTimes))
	}
	if len(counts) == 0 {
		return Series{}, fmt.Errorf("%w: no measurements", models.ErrConfiguration)
	}
	for i := range counts {
		if counts[i] < 0 {
			return Series{}, fmt.Errorf("%w: point %d has negative event count %d",
				models.ErrConfiguration, i, counts[i])
		}
		if !(liveTimes[i] > 0) || math.IsInf(liveTimes[i], 0) {
			return Series{}, fmt.Errorf("%w: point %d has non-positive live time %g",
				models.ErrConfiguration, i, liveTimes[i])
		}
	}

	s := Series{
		Rates:    make([]models.RateObservation, len(counts)),
		LogRates: make([]models.LogRateObservation, len(counts)),
	}
	for i := range counts {
		if counts[i] == 0 {
			return Series{}, fmt.Errorf("%w: point %d has zero events, log(rate) undefined",
				models.ErrDomain, i)
		}
		obs := Observe(counts[i], liveTimes[i])
		s.Rates[i] = obs
		s.LogRates[i] = models.LogRateObservation{
			LogRate:            math.Log(obs.Rate),
			LogRateUncertainty: obs.RateUncertainty / obs.Rate,
		}
	}
	return s, nil
}

// Points pairs the three input series into measurement points. Length mismatches are
// reported before anything else is looked at.
func Points(controls []float64, counts []int64, liveTimes []float64) ([]models.MeasurementPoint, error) {
	if len(controls) != len(counts) || len(controls) != len(liveTimes) {
		return nil, fmt.Errorf("%w: series lengths differ (control_values=%d, event_counts=%d, live_times=%d)",
			models.ErrConfiguration, len(controls), len(counts), len(liveTimes))
	}
	points := make([]models.MeasurementPoint, len(controls))
	for i := range controls {
		points[i] = models.MeasurementPoint{
			ControlValue:   controls[i],
			EventCount:     counts[i],
			LiveTimeMicros: liveTimes[i],
		}
		if err := points[i].Validate(); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
	}
	return points, nil
}

// Split unpacks measurement points into the parallel series Propagate and the fitter take.
func Split(points []models.MeasurementPoint) (controls []float64, counts []int64, liveTimes []float64) {
	controls = make([]float64, len(points))
	counts = make([]int64, len(points))
	liveTimes = make([]float64, len(points))
	for i, p := range points {
		controls[i] = p.ControlValue
		counts[i] = p.EventCount
		liveTimes[i] = p.LiveTimeMicros
	}
	return controls, counts, liveTimes
}

// ExcludeZeroCounts separates points that cannot enter a log-space fit.
func ExcludeZeroCounts(points []models.MeasurementPoint) (kept, dropped []models.MeasurementPoint) {
	for _, p := range points {
		if p.EventCount == 0 {
			dropped = append(dropped, p)
			continue
		}
		kept = append(kept, p)
	}
	return kept, dropped
}

// FromEvents derives a measurement point from a triggered acquisition: the count is the
// number of inter-trigger intervals and the live time is the span between the first
// and last trigger.
func FromEvents(events []models.ChargeEvent, control float64) (models.MeasurementPoint, error) {
	if len(events) < 2 {
		return models.MeasurementPoint{}, fmt.Errorf("%w: need at least 2 events to measure a rate, got %d",
			models.ErrDomain, len(events))
	}
	first := events[0].TriggerTimeMicros
	last := events[len(events)-1].TriggerTimeMicros
	if last <= first {
		return models.MeasurementPoint{}, fmt.Errorf("%w: trigger times do not advance (%d -> %d)",
			models.ErrDomain, first, last)
	}
	return models.MeasurementPoint{
		ControlValue:   control,
		EventCount:     int64(len(events) - 1),
		LiveTimeMicros: float64(last - first),
	}, nil
}
