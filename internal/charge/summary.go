package charge

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/ratescan/internal/models"
)

// Bin is one histogram bin, [Low, High).
type Bin struct {
	Low   float64 `json:"low" yaml:"low"`
	High  float64 `json:"high" yaml:"high"`
	Count float64 `json:"count" yaml:"count"`
}

// Summary describes a charge distribution for the histogram collaborator.
type Summary struct {
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Bins   []Bin   `json:"bins" yaml:"bins"`
}

// Summarize bins the charges into the requested number of equal-width bins spanning
// the observed range.
func Summarize(charges []float64, bins int) (Summary, error) {
	if bins < 1 {
		return Summary{}, fmt.Errorf("%w: bin count must be positive, got %d", models.ErrConfiguration, bins)
	}
	s := Summary{Count: len(charges)}
	if len(charges) == 0 {
		return s, nil
	}

	s.Mean, s.StdDev = stat.MeanStdDev(charges, nil)
	if len(charges) < 2 {
		s.StdDev = 0
	}
	s.Min = floats.Min(charges)
	s.Max = floats.Max(charges)

	hi := s.Max
	if hi == s.Min {
		hi = s.Min + 1
	}
	dividers := floats.Span(make([]float64, bins+1), s.Min, hi)
	// stat.Histogram bins are half-open, so the top edge must lie strictly above the maximum.
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	sorted := append([]float64(nil), charges...)
	sort.Float64s(sorted)
	counts := stat.Histogram(nil, dividers, sorted, nil)

	s.Bins = make([]Bin, bins)
	for i := range counts {
		s.Bins[i] = Bin{Low: dividers[i], High: dividers[i+1], Count: counts[i]}
	}
	return s, nil
}

// Correlation is the Pearson coefficient between the charges of two channels.
type Correlation struct {
	ChannelA    string  `json:"channel_a" yaml:"channel_a"`
	ChannelB    string  `json:"channel_b" yaml:"channel_b"`
	Coefficient float64 `json:"coefficient" yaml:"coefficient"`
}

// Correlations computes every pairwise correlation between per-event charge series.
// All series must describe the same events.
func Correlations(byChannel map[string][]float64) ([]Correlation, error) {
	channels := make([]string, 0, len(byChannel))
	for ch := range byChannel {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	var out []Correlation
	for i := 0; i < len(channels); i++ {
		for j := i + 1; j < len(channels); j++ {
			a, b := byChannel[channels[i]], byChannel[channels[j]]
			if len(a) != len(b) {
				return nil, fmt.Errorf("%w: channel %s has %d events, channel %s has %d",
					models.ErrConfiguration, channels[i], len(a), channels[j], len(b))
			}
			out = append(out, Correlation{
				ChannelA:    channels[i],
				ChannelB:    channels[j],
				Coefficient: stat.Correlation(a, b, nil),
			})
		}
	}
	return out, nil
}
