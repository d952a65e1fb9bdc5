package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/ratescan/internal/analysis"
	"github.com/rewired-gh/ratescan/internal/charge"
	"github.com/rewired-gh/ratescan/internal/logger"
	"github.com/rewired-gh/ratescan/internal/models"
	"github.com/rewired-gh/ratescan/internal/rate"
	"github.com/rewired-gh/ratescan/internal/waveform"
)

func fitCmd(a *app) *cobra.Command {
	var dataset string
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit log(rate) against the control variable",
		Long: `Fit ln(rate) = a*x + b over a scan. Points come from a stored dataset when
--dataset (or fit.dataset) is set, otherwise from fit.control_values, fit.event_counts
and fit.live_times in the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataset == "" {
				dataset = a.cfg.Fit.Dataset
			}
			n := a.notifier()

			points, err := a.scanPoints(dataset)
			if err != nil {
				return finish(n, err)
			}
			cfg, err := a.analysisConfig()
			if err != nil {
				return err
			}
			res, err := analysis.RateScan(points, cfg)
			if err != nil {
				return finish(n, err)
			}

			w, err := a.openReport()
			if err != nil {
				return err
			}
			defer closeReport(w)
			if err := w.WriteRate(res); err != nil {
				return err
			}

			if n != nil {
				if err := n.SendRate(res); err != nil {
					logger.Warn("Failed to send fit summary to Telegram: %v", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "Stored dataset to fit")
	return cmd
}

func (a *app) scanPoints(dataset string) ([]models.MeasurementPoint, error) {
	if dataset == "" {
		return rate.Points(a.cfg.Fit.ControlValues, a.cfg.Fit.EventCounts, a.cfg.Fit.LiveTimes)
	}

	store, err := a.openStorage()
	if err != nil {
		return nil, err
	}
	defer closeStorage(store)

	points, err := store.Measurements(dataset)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: dataset %q has no measurements", models.ErrConfiguration, dataset)
	}
	logger.Info("Loaded %d points from dataset %s", len(points), dataset)
	return points, nil
}

// readCapture parses the acquisition file named on the command line, falling back to
// waveform.source_file.
func (a *app) readCapture(args []string) (*waveform.Capture, error) {
	path := a.cfg.Waveform.SourceFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return nil, fmt.Errorf("%w: no waveform file given and waveform.source_file is empty", models.ErrConfiguration)
	}
	capture, err := waveform.ReadFile(path, waveform.Options{MaxSampleTime: a.cfg.Waveform.MaxSampleTime})
	if err != nil {
		return nil, err
	}
	logger.Info("Read %d events from %s", len(capture.Triggers), path)
	return capture, nil
}

func chargesCmd(a *app) *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:     "charges [file]",
		Short:   "Integrate waveform charges and flag out-of-range events",
		Example: `ratescan charges DATA/blocks_11/block_1000_50_7_770V.txt --channel D`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if channel != "" {
				a.cfg.Waveform.Channel = channel
			}
			n := a.notifier()

			capture, err := a.readCapture(args)
			if err != nil {
				return finish(n, err)
			}
			cfg, err := a.analysisConfig()
			if err != nil {
				return err
			}
			res, err := analysis.Charges(capture, cfg, charge.WithReporter(func(c models.ChargeClassification) {
				logger.Warn("Event %d: charge %g is %s", c.EventIndex, c.Charge, c.Verdict)
			}))
			if err != nil {
				return finish(n, err)
			}

			w, err := a.openReport()
			if err != nil {
				return err
			}
			defer closeReport(w)
			if err := w.WriteCharges(res); err != nil {
				return err
			}

			if n != nil {
				if err := n.SendCharges(res); err != nil {
					logger.Warn("Failed to send charge summary to Telegram: %v", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "Channel to integrate (A-D, overrides waveform.channel)")
	return cmd
}

func intervalsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intervals [file]",
		Short: "Fit the inter-event time distribution of an acquisition",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := a.notifier()

			capture, err := a.readCapture(args)
			if err != nil {
				return finish(n, err)
			}
			events, err := capture.Events(a.cfg.Waveform.Channel)
			if err != nil {
				return err
			}
			cfg, err := a.analysisConfig()
			if err != nil {
				return err
			}
			res, err := analysis.Intervals(events, cfg)
			if err != nil {
				return finish(n, err)
			}

			w, err := a.openReport()
			if err != nil {
				return err
			}
			defer closeReport(w)
			if err := w.WriteIntervals(res); err != nil {
				return err
			}

			if n != nil {
				if err := n.SendIntervals(res); err != nil {
					logger.Warn("Failed to send interval summary to Telegram: %v", err)
				}
			}
			return nil
		},
	}
	return cmd
}
