package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/ratescan/internal/analysis"
	"github.com/rewired-gh/ratescan/internal/charge"
	"github.com/rewired-gh/ratescan/internal/config"
	"github.com/rewired-gh/ratescan/internal/fit"
	"github.com/rewired-gh/ratescan/internal/logger"
	"github.com/rewired-gh/ratescan/internal/notify"
	"github.com/rewired-gh/ratescan/internal/report"
	"github.com/rewired-gh/ratescan/internal/storage"
)

type app struct {
	configPath string
	output     string
	format     string
	cfg        *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "ratescan",
		Short: "Characterise detector acquisition runs",
		Long: `Fit event rates against a scanned control variable (threshold or bias voltage),
integrate and classify waveform charges, and fit inter-event time distributions.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to configuration file")
	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", "", "Report output path (overrides report.output, - for stdout)")
	cmd.PersistentFlags().StringVarP(&a.format, "format", "f", "", "Report format: text, json or yaml (overrides report.format)")

	cmd.AddCommand(fitCmd(a))
	cmd.AddCommand(chargesCmd(a))
	cmd.AddCommand(intervalsCmd(a))
	cmd.AddCommand(scanCmd(a))
	return cmd
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.output != "" {
		cfg.Report.Output = a.output
	}
	if a.format != "" {
		cfg.Report.Format = a.format
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if a.configPath != "" {
		logger.Debug("Configuration loaded from %s", a.configPath)
	}
	a.cfg = cfg
	return nil
}

// analysisConfig maps the loaded configuration onto the pipeline settings.
func (a *app) analysisConfig() (analysis.Config, error) {
	mode, err := fit.ParseCovarianceMode(a.cfg.Fit.Covariance)
	if err != nil {
		return analysis.Config{}, err
	}
	return analysis.Config{
		Covariance:  mode,
		ExcludeZero: a.cfg.Fit.ExcludeZero,
		CurveMin:    a.cfg.Fit.CurveMin,
		CurveMax:    a.cfg.Fit.CurveMax,
		CurveStep:   a.cfg.Fit.CurveStep,
		Channel:     a.cfg.Waveform.Channel,
		Thresholds: charge.Thresholds{
			Min: a.cfg.Waveform.MinThreshold,
			Max: a.cfg.Waveform.MaxThreshold,
		},
		BinCount:         a.cfg.Waveform.BinCount,
		Workers:          a.cfg.Waveform.Workers,
		Correlate:        a.cfg.Waveform.Correlate,
		IntervalBins:     a.cfg.Intervals.Bins,
		MinBinCount:      a.cfg.Intervals.MinCount,
		MinFirstBinWidth: a.cfg.Intervals.MinFirstBinWidth,
	}, nil
}

func (a *app) openReport() (*report.Writer, error) {
	w, err := report.Open(a.cfg.Report.Output, a.cfg.Report.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	return w, nil
}

func (a *app) openStorage() (*storage.Storage, error) {
	store, err := storage.New(a.cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

// notifier returns nil when Telegram is disabled. A client that cannot be created is
// logged and skipped, the analysis result is still reported locally.
func (a *app) notifier() *notify.Client {
	tg := a.cfg.Telegram
	if !tg.Enabled {
		logger.Debug("Telegram notifications disabled")
		return nil
	}
	client, err := notify.NewClient(tg.BotToken, tg.ChatID, tg.MaxRetries, tg.RetryDelayBase)
	if err != nil {
		logger.Error("Failed to initialize Telegram client: %v", err)
		return nil
	}
	logger.Debug("Telegram client initialized successfully")
	return client
}

// finish reports a pipeline failure to Telegram before returning it.
func finish(n *notify.Client, err error) error {
	if err != nil && n != nil {
		if sendErr := n.SendError(err); sendErr != nil {
			logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
		}
	}
	return err
}

func closeReport(w *report.Writer) {
	if err := w.Close(); err != nil {
		logger.Error("Failed to close report: %v", err)
	}
}

func closeStorage(s *storage.Storage) {
	if err := s.Close(); err != nil {
		logger.Error("Failed to close storage: %v", err)
	}
}
