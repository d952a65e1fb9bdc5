// Package models defines the core domain entities: measurement points, rate observations,
// fit results, and charge events.
package models

import (
	"fmt"
	"math"
	"time"
)

// MeasurementPoint is one run condition of a threshold or bias-voltage scan.
// Points are paired positionally: ControlValue, EventCount and LiveTimeMicros always
// come from the same index of the input series.
type MeasurementPoint struct {
	ID             string    `json:"id,omitempty" yaml:"id,omitempty"`
	Dataset        string    `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	ControlValue   float64   `json:"control_value" yaml:"control_value"`
	EventCount     int64     `json:"event_count" yaml:"event_count"`
	LiveTimeMicros float64   `json:"live_time_us" yaml:"live_time_us"`
	Source         string    `json:"source,omitempty" yaml:"source,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Validate checks measurement point field constraints.
func (p *MeasurementPoint) Validate() error {
	if math.IsNaN(p.ControlValue) || math.IsInf(p.ControlValue, 0) {
		return fmt.Errorf("%w: control value must be finite", ErrConfiguration)
	}
	if p.EventCount < 0 {
		return fmt.Errorf("%w: event count must not be negative", ErrConfiguration)
	}
	if !(p.LiveTimeMicros > 0) || math.IsInf(p.LiveTimeMicros, 0) {
		return fmt.Errorf("%w: live time must be positive", ErrConfiguration)
	}
	return nil
}

// RateObservation is the event rate (per second) derived from a MeasurementPoint
// together with its Poisson counting uncertainty.
type RateObservation struct {
	Rate            float64 `json:"rate" yaml:"rate"`
	RateUncertainty float64 `json:"rate_uncertainty" yaml:"rate_uncertainty"`
}

// LogRateObservation is ln(rate) with the first-order propagated uncertainty sigma(r)/r.
type LogRateObservation struct {
	LogRate            float64 `json:"log_rate" yaml:"log_rate"`
	LogRateUncertainty float64 `json:"log_rate_uncertainty" yaml:"log_rate_uncertainty"`
}

// FitResult holds the outcome of a weighted fit of y = Slope*x + Intercept.
type FitResult struct {
	Slope             float64 `json:"slope" yaml:"slope"`
	Intercept         float64 `json:"intercept" yaml:"intercept"`
	SlopeVariance     float64 `json:"slope_variance" yaml:"slope_variance"`
	InterceptVariance float64 `json:"intercept_variance" yaml:"intercept_variance"`
	Covariance        float64 `json:"covariance" yaml:"covariance"`
	Chi2              float64 `json:"chi2" yaml:"chi2"`
	NDF               int     `json:"ndf" yaml:"ndf"`
	Points            int     `json:"points" yaml:"points"`
}

// SlopeError returns the standard deviation of the slope.
func (f FitResult) SlopeError() float64 {
	return math.Sqrt(f.SlopeVariance)
}

// InterceptError returns the standard deviation of the intercept.
func (f FitResult) InterceptError() float64 {
	return math.Sqrt(f.InterceptVariance)
}

// Exponential re-expresses a log-space fit as A*exp(lambda*(x-x0)) for the given x0.
func (f FitResult) Exponential(x0 float64) (amplitude, lambda float64) {
	return math.Exp(f.Slope*x0 + f.Intercept), f.Slope
}
