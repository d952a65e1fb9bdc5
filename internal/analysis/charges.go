package analysis

import (
	"fmt"

	"github.com/rewired-gh/ratescan/internal/charge"
	"github.com/rewired-gh/ratescan/internal/logger"
	"github.com/rewired-gh/ratescan/internal/models"
	"github.com/rewired-gh/ratescan/internal/waveform"
)

// ChargeReport is the outcome of integrating one channel of an acquisition.
type ChargeReport struct {
	Channel      string                        `json:"channel" yaml:"channel"`
	Thresholds   charge.Thresholds             `json:"thresholds" yaml:"thresholds"`
	Summary      charge.Summary                `json:"summary" yaml:"summary"`
	Flagged      []models.ChargeClassification `json:"flagged" yaml:"flagged"`
	Correlations []charge.Correlation          `json:"correlations,omitempty" yaml:"correlations,omitempty"`
	Charges      []float64                     `json:"-" yaml:"-"`
}

// Charges integrates the configured channel of src, flags events outside the threshold
// window and summarises the charge distribution. Extra options are applied after the
// worker count from cfg.
func Charges(src waveform.Source, cfg Config, opts ...charge.Option) (ChargeReport, error) {
	events, err := src.Events(cfg.Channel)
	if err != nil {
		return ChargeReport{}, err
	}

	opts = append([]charge.Option{charge.WithWorkers(cfg.Workers)}, opts...)
	res, err := charge.Process(events, cfg.Thresholds, opts...)
	if err != nil {
		return ChargeReport{}, fmt.Errorf("failed to process channel %s: %w", cfg.Channel, err)
	}

	summary, err := charge.Summarize(res.Charges, cfg.BinCount)
	if err != nil {
		return ChargeReport{}, fmt.Errorf("failed to summarize charges: %w", err)
	}

	report := ChargeReport{
		Channel:    cfg.Channel,
		Thresholds: cfg.Thresholds,
		Summary:    summary,
		Flagged:    res.Flagged,
		Charges:    res.Charges,
	}

	if cfg.Correlate {
		byChannel := make(map[string][]float64)
		for _, ch := range src.Channels() {
			evs, err := src.Events(ch)
			if err != nil {
				return ChargeReport{}, err
			}
			q := make([]float64, len(evs))
			for i := range evs {
				q[i] = charge.Integrate(evs[i].Samples)
			}
			byChannel[ch] = q
		}
		report.Correlations, err = charge.Correlations(byChannel)
		if err != nil {
			return ChargeReport{}, fmt.Errorf("failed to correlate channels: %w", err)
		}
	}

	logger.Debug("Channel %s: %d events, %d flagged", cfg.Channel, summary.Count, len(res.Flagged))
	return report, nil
}
