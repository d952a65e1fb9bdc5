package analysis

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/ratescan/internal/charge"
	"github.com/rewired-gh/ratescan/internal/fit"
	"github.com/rewired-gh/ratescan/internal/logger"
	"github.com/rewired-gh/ratescan/internal/models"
	"github.com/rewired-gh/ratescan/internal/rate"
)

// intervalSpan is the histogram range in units of the mean interval.
const intervalSpan = 5

// IntervalReport describes the inter-event time distribution of an acquisition and the
// exponential fit to it.
type IntervalReport struct {
	Events             int                    `json:"events" yaml:"events"`
	GlobalRate         models.RateObservation `json:"global_rate" yaml:"global_rate"`
	MeanIntervalMicros float64                `json:"mean_interval_us" yaml:"mean_interval_us"`
	Bins               []charge.Bin           `json:"bins" yaml:"bins"`
	FirstFittedBin     int                    `json:"first_fitted_bin" yaml:"first_fitted_bin"`
	LastFittedBin      int                    `json:"last_fitted_bin" yaml:"last_fitted_bin"`
	FittedBins         int                    `json:"fitted_bins" yaml:"fitted_bins"`
	Fit                models.FitResult       `json:"fit" yaml:"fit"`
	// Lambda is the fitted decay constant in events per second.
	Lambda      float64 `json:"lambda" yaml:"lambda"`
	LambdaError float64 `json:"lambda_error" yaml:"lambda_error"`
}

// Intervals histograms the times between consecutive triggers over [0, 5*mean) and fits
// log(count density) against the bin centre in seconds over the range chosen by fitRange.
// Empty bins in that range are excluded.
func Intervals(events []models.ChargeEvent, cfg Config) (IntervalReport, error) {
	if cfg.IntervalBins < fit.MinPoints {
		return IntervalReport{}, fmt.Errorf("%w: need at least %d interval bins, got %d",
			models.ErrConfiguration, fit.MinPoints, cfg.IntervalBins)
	}

	global, err := rate.FromEvents(events, 0)
	if err != nil {
		return IntervalReport{}, err
	}

	dts := make([]float64, 0, len(events)-1)
	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1].TriggerTimeMicros, events[i].TriggerTimeMicros
		if cur < prev {
			return IntervalReport{}, fmt.Errorf("%w: trigger time of event %d goes backwards (%d -> %d)",
				models.ErrDomain, events[i].Index, prev, cur)
		}
		dts = append(dts, float64(cur-prev))
	}

	mean := stat.Mean(dts, nil)
	report := IntervalReport{
		Events:             len(events),
		GlobalRate:         rate.Observe(global.EventCount, global.LiveTimeMicros),
		MeanIntervalMicros: mean,
	}

	upper := intervalSpan * mean
	dividers := floats.Span(make([]float64, cfg.IntervalBins+1), 0, upper)
	dividers[cfg.IntervalBins] = upper
	sort.Float64s(dts)
	inRange := dts[:sort.SearchFloat64s(dts, upper)]
	counts := stat.Histogram(nil, dividers, inRange, nil)

	report.Bins = make([]charge.Bin, len(counts))
	for i, c := range counts {
		report.Bins[i] = charge.Bin{Low: dividers[i], High: dividers[i+1], Count: c}
	}

	first, last := fitRange(counts, upper/float64(cfg.IntervalBins), cfg)
	if last < first {
		return IntervalReport{}, fmt.Errorf("%w: no interval bin in the fit range holds %d entries",
			models.ErrDomain, cfg.MinBinCount)
	}
	report.FirstFittedBin, report.LastFittedBin = first, last

	points := make([]models.MeasurementPoint, 0, last-first+1)
	for _, b := range report.Bins[first : last+1] {
		points = append(points, models.MeasurementPoint{
			ControlValue:   (b.Low + b.High) / 2 * rate.TimeUnitScale,
			EventCount:     int64(b.Count),
			LiveTimeMicros: b.High - b.Low,
		})
	}
	points, dropped := rate.ExcludeZeroCounts(points)
	if len(dropped) > 0 {
		logger.Debug("Excluding %d empty interval bins from the fit", len(dropped))
	}

	result, _, err := fit.Rates(points, fit.WithCovariance(cfg.Covariance))
	if err != nil {
		return IntervalReport{}, fmt.Errorf("failed to fit interval distribution: %w", err)
	}
	report.Fit = result
	report.FittedBins = len(points)
	report.Lambda = -result.Slope
	report.LambdaError = result.SlopeError()

	logger.Debug("Interval fit: lambda=%g±%g /s, global rate %g /s",
		report.Lambda, report.LambdaError, report.GlobalRate.Rate)
	return report, nil
}

// fitRange picks the bins entering the fit. The first bin is skipped unless bins are wider
// than cfg.MinFirstBinWidth microseconds. The range ends at the last bin, the final one
// excluded, holding at least cfg.MinBinCount entries; last is -1 when none does.
func fitRange(counts []float64, width float64, cfg Config) (first, last int) {
	if width <= cfg.MinFirstBinWidth {
		first = 1
	}
	last = -1
	for k := 0; k < len(counts)-1; k++ {
		if counts[k] >= float64(cfg.MinBinCount) {
			last = k
		}
	}
	return first, last
}
