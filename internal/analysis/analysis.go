// Package analysis wires the rate, fit and charge packages into the pipelines the
// command line runs: rate scans, charge distributions and inter-event time fits.
package analysis

import (
	"github.com/rewired-gh/ratescan/internal/charge"
	"github.com/rewired-gh/ratescan/internal/fit"
)

// Config holds the settings of every pipeline in this package.
type Config struct {
	Covariance  fit.CovarianceMode
	ExcludeZero bool
	CurveMin    float64
	CurveMax    float64
	CurveStep   float64

	Channel    string
	Thresholds charge.Thresholds
	BinCount   int
	Workers    int
	Correlate  bool

	IntervalBins     int
	MinBinCount      int
	MinFirstBinWidth float64 // microseconds
}

// DefaultConfig returns the settings used for the block III acquisitions.
func DefaultConfig() Config {
	return Config{
		Covariance:       fit.Scaled,
		CurveMin:         0,
		CurveMax:         2000,
		CurveStep:        10,
		Channel:          "D",
		Thresholds:       charge.Thresholds{Min: 2000, Max: 40000},
		BinCount:         20,
		Workers:          1,
		IntervalBins:     20,
		MinBinCount:      8,
		MinFirstBinWidth: 3e6,
	}
}
