package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/ratescan/internal/logger"
	"github.com/rewired-gh/ratescan/internal/models"
	"github.com/rewired-gh/ratescan/internal/rate"
)

func scanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Manage stored scan measurements",
	}
	cmd.AddCommand(scanAddCmd(a))
	cmd.AddCommand(scanListCmd(a))
	cmd.AddCommand(scanRmCmd(a))
	return cmd
}

func scanAddCmd(a *app) *cobra.Command {
	var (
		dataset  string
		control  float64
		count    int64
		liveTime float64
	)
	cmd := &cobra.Command{
		Use:   "add [file]",
		Short: "Add a measurement point to a dataset",
		Long: `Add one point to a dataset. With a waveform file the event count and live time
are taken from its trigger times; otherwise --count and --live-time are required.`,
		Example: `ratescan scan add --dataset voltage --control 770 DATA/blocks_11/block_1000_50_7_770V.txt
ratescan scan add --dataset threshold --control 100 --count 1016 --live-time 237586098`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := models.MeasurementPoint{
				ControlValue:   control,
				EventCount:     count,
				LiveTimeMicros: liveTime,
			}
			if len(args) == 1 {
				capture, err := a.readCapture(args)
				if err != nil {
					return err
				}
				events, err := capture.Events(a.cfg.Waveform.Channel)
				if err != nil {
					return err
				}
				p, err = rate.FromEvents(events, control)
				if err != nil {
					return err
				}
				p.Source = filepath.Base(args[0])
			} else if !cmd.Flags().Changed("count") || !cmd.Flags().Changed("live-time") {
				return fmt.Errorf("%w: --count and --live-time are required without a waveform file", models.ErrConfiguration)
			}
			p.Dataset = dataset
			if err := p.Validate(); err != nil {
				return err
			}

			store, err := a.openStorage()
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if err := store.AddMeasurement(&p); err != nil {
				return err
			}
			logger.Info("Added point %s to dataset %s (control %g, %d events, %.0f us)",
				p.ID, p.Dataset, p.ControlValue, p.EventCount, p.LiveTimeMicros)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "Dataset name")
	cmd.Flags().Float64Var(&control, "control", 0, "Control value (threshold or bias voltage)")
	cmd.Flags().Int64Var(&count, "count", 0, "Event count")
	cmd.Flags().Float64Var(&liveTime, "live-time", 0, "Live time in microseconds")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("control")
	return cmd
}

func scanListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [dataset]",
		Short: "List datasets, or the points of one dataset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStorage()
			if err != nil {
				return err
			}
			defer closeStorage(store)

			w, err := a.openReport()
			if err != nil {
				return err
			}
			defer closeReport(w)

			if len(args) == 0 {
				datasets, err := store.Datasets()
				if err != nil {
					return err
				}
				return w.WriteDatasets(datasets)
			}
			points, err := store.Measurements(args[0])
			if err != nil {
				return err
			}
			return w.WriteMeasurements(points)
		},
	}
}

func scanRmCmd(a *app) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "rm [dataset]",
		Short: "Remove a dataset, or a single point with --id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (id == "") == (len(args) == 0) {
				return fmt.Errorf("%w: give either a dataset or --id", models.ErrConfiguration)
			}

			store, err := a.openStorage()
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if id != "" {
				if err := store.DeleteMeasurement(id); err != nil {
					return err
				}
				logger.Info("Removed point %s", id)
				return nil
			}
			n, err := store.DeleteDataset(args[0])
			if err != nil {
				return err
			}
			logger.Info("Removed %d points from dataset %s", n, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Remove the point with this ID")
	return cmd
}
