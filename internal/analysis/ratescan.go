package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/rewired-gh/ratescan/internal/fit"
	"github.com/rewired-gh/ratescan/internal/logger"
	"github.com/rewired-gh/ratescan/internal/models"
	"github.com/rewired-gh/ratescan/internal/rate"
)

// Observation is one fitted point with its derived rate quantities.
type Observation struct {
	ControlValue       float64 `json:"control_value" yaml:"control_value"`
	EventCount         int64   `json:"event_count" yaml:"event_count"`
	Rate               float64 `json:"rate" yaml:"rate"`
	RateUncertainty    float64 `json:"rate_uncertainty" yaml:"rate_uncertainty"`
	LogRate            float64 `json:"log_rate" yaml:"log_rate"`
	LogRateUncertainty float64 `json:"log_rate_uncertainty" yaml:"log_rate_uncertainty"`
}

// RateReport is the outcome of a rate scan fit.
type RateReport struct {
	Dataset      string                    `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Covariance   string                    `json:"covariance" yaml:"covariance"`
	Observations []Observation             `json:"observations" yaml:"observations"`
	Dropped      []models.MeasurementPoint `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	Fit          models.FitResult          `json:"fit" yaml:"fit"`
	Reference    float64                   `json:"reference" yaml:"reference"`
	Amplitude    float64                   `json:"amplitude" yaml:"amplitude"`
	Lambda       float64                   `json:"lambda" yaml:"lambda"`
	Curve        []rate.CurvePoint         `json:"curve,omitempty" yaml:"curve,omitempty"`
}

// RateScan fits log(rate) against the control value of every point. Zero-count points
// fail with models.ErrDomain unless cfg.ExcludeZero is set, in which case they are
// removed and listed in the report.
func RateScan(points []models.MeasurementPoint, cfg Config) (RateReport, error) {
	for i := range points {
		if err := points[i].Validate(); err != nil {
			return RateReport{}, fmt.Errorf("point %d: %w", i, err)
		}
	}

	report := RateReport{Covariance: cfg.Covariance.String()}
	if len(points) > 0 {
		report.Dataset = points[0].Dataset
	}

	if cfg.ExcludeZero {
		kept, dropped := rate.ExcludeZeroCounts(points)
		for _, p := range dropped {
			logger.Warn("Excluding zero-count point at control value %g", p.ControlValue)
		}
		points = kept
		report.Dropped = dropped
	}

	result, series, err := fit.Rates(points, fit.WithCovariance(cfg.Covariance))
	if err != nil {
		return RateReport{}, fmt.Errorf("failed to fit rate scan: %w", err)
	}
	report.Fit = result

	report.Observations = make([]Observation, len(points))
	controls := make([]float64, len(points))
	for i, p := range points {
		controls[i] = p.ControlValue
		report.Observations[i] = Observation{
			ControlValue:       p.ControlValue,
			EventCount:         p.EventCount,
			Rate:               series.Rates[i].Rate,
			RateUncertainty:    series.Rates[i].RateUncertainty,
			LogRate:            series.LogRates[i].LogRate,
			LogRateUncertainty: series.LogRates[i].LogRateUncertainty,
		}
	}

	report.Reference = floats.Min(controls)
	report.Amplitude, report.Lambda = result.Exponential(report.Reference)
	report.Curve = rate.Curve(result, rate.Span(cfg.CurveMin, cfg.CurveMax, cfg.CurveStep))

	logger.Debug("Rate scan fit: slope=%g±%g intercept=%g±%g (%d points, %s covariance)",
		result.Slope, result.SlopeError(), result.Intercept, result.InterceptError(),
		result.Points, report.Covariance)
	return report, nil
}
