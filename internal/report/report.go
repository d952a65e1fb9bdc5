// Package report renders analysis results. A Writer owns its output for its whole
// lifetime and must be closed by whoever opened it.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/rewired-gh/ratescan/internal/analysis"
	"github.com/rewired-gh/ratescan/internal/models"
	"github.com/rewired-gh/ratescan/internal/storage"
)

// Supported output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Writer renders reports in one format to one destination.
type Writer struct {
	out    io.Writer
	closer io.Closer
	format string
}

// Open creates a Writer for path. An empty path or "-" writes to stdout, which is
// never closed.
func Open(path, format string) (*Writer, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	if path == "" || path == "-" {
		return &Writer{out: os.Stdout, format: format}, nil
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return &Writer{out: f, closer: f, format: format}, nil
}

// NewWriter wraps an existing writer. Close is a no-op.
func NewWriter(w io.Writer, format string) (*Writer, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	return &Writer{out: w, format: format}, nil
}

func checkFormat(format string) error {
	switch format {
	case FormatText, FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("%w: unknown report format %q", models.ErrConfiguration, format)
	}
}

// Close releases the underlying file, if the Writer opened one.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}

// WriteRate renders a rate scan fit.
func (w *Writer) WriteRate(r analysis.RateReport) error {
	if w.format != FormatText {
		return w.encode(r)
	}

	tw := newTabWriter(w.out)
	if r.Dataset != "" {
		fmt.Fprintf(tw, "Dataset:\t%s\n", r.Dataset)
	}
	fmt.Fprintf(tw, "CONTROL\tEVENTS\tRATE (/s)\tσ RATE\tLN RATE\tσ LN RATE\n")
	for _, o := range r.Observations {
		fmt.Fprintf(tw, "%g\t%d\t%.6g\t%.3g\t%.6g\t%.3g\n",
			o.ControlValue, o.EventCount, o.Rate, o.RateUncertainty, o.LogRate, o.LogRateUncertainty)
	}
	for _, p := range r.Dropped {
		fmt.Fprintf(tw, "%g\t%d\t(excluded)\t\t\t\n", p.ControlValue, p.EventCount)
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Fit:\tln(rate) = a*x + b\t(%s covariance)\n", r.Covariance)
	fmt.Fprintf(tw, "a\t%.6g ± %.3g\n", r.Fit.Slope, r.Fit.SlopeError())
	fmt.Fprintf(tw, "b\t%.6g ± %.3g\n", r.Fit.Intercept, r.Fit.InterceptError())
	fmt.Fprintf(tw, "cov(a,b)\t%.3g\n", r.Fit.Covariance)
	fmt.Fprintf(tw, "chi2/ndf\t%.4g / %d\n", r.Fit.Chi2, r.Fit.NDF)
	fmt.Fprintf(tw, "Exponential:\tA = %.6g, λ = %.6g, x0 = %g\n", r.Amplitude, r.Lambda, r.Reference)
	if len(r.Curve) > 0 {
		first, last := r.Curve[0], r.Curve[len(r.Curve)-1]
		fmt.Fprintf(tw, "Curve:\t%d points, rate(%g) = %.6g, rate(%g) = %.6g\n",
			len(r.Curve), first.X, first.Rate, last.X, last.Rate)
	}
	return tw.Flush()
}

// WriteCharges renders a charge distribution and its flagged events.
func (w *Writer) WriteCharges(r analysis.ChargeReport) error {
	if w.format != FormatText {
		return w.encode(r)
	}

	tw := newTabWriter(w.out)
	s := r.Summary
	fmt.Fprintf(tw, "Channel:\t%s\n", r.Channel)
	fmt.Fprintf(tw, "Window:\t[%g, %g]\n", r.Thresholds.Min, r.Thresholds.Max)
	fmt.Fprintf(tw, "Events:\t%d\n", s.Count)
	fmt.Fprintf(tw, "Mean:\t%.6g\n", s.Mean)
	fmt.Fprintf(tw, "Std dev:\t%.6g\n", s.StdDev)
	fmt.Fprintf(tw, "Range:\t[%g, %g]\n", s.Min, s.Max)
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "LOW\tHIGH\tCOUNT\n")
	for _, b := range s.Bins {
		fmt.Fprintf(tw, "%.6g\t%.6g\t%g\n", b.Low, b.High, b.Count)
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Flagged:\t%d\n", len(r.Flagged))
	for _, c := range r.Flagged {
		fmt.Fprintf(tw, "  event %d\t%g\t%s\n", c.EventIndex, c.Charge, c.Verdict)
	}
	if len(r.Correlations) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "CHANNELS\tCORRELATION\n")
		for _, c := range r.Correlations {
			fmt.Fprintf(tw, "%s-%s\t%.4f\n", c.ChannelA, c.ChannelB, c.Coefficient)
		}
	}
	return tw.Flush()
}

// WriteIntervals renders an inter-event time fit.
func (w *Writer) WriteIntervals(r analysis.IntervalReport) error {
	if w.format != FormatText {
		return w.encode(r)
	}

	tw := newTabWriter(w.out)
	fmt.Fprintf(tw, "Events:\t%d\n", r.Events)
	fmt.Fprintf(tw, "Global rate:\t%.6g ± %.3g /s\n", r.GlobalRate.Rate, r.GlobalRate.RateUncertainty)
	fmt.Fprintf(tw, "Mean interval:\t%.6g us\n", r.MeanIntervalMicros)
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "LOW (us)\tHIGH (us)\tCOUNT\n")
	for _, b := range r.Bins {
		fmt.Fprintf(tw, "%.6g\t%.6g\t%g\n", b.Low, b.High, b.Count)
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Fitted bins:\t%d (bins %d-%d)\n", r.FittedBins, r.FirstFittedBin, r.LastFittedBin)
	fmt.Fprintf(tw, "λ:\t%.6g ± %.3g /s\n", r.Lambda, r.LambdaError)
	fmt.Fprintf(tw, "chi2/ndf:\t%.4g / %d\n", r.Fit.Chi2, r.Fit.NDF)
	return tw.Flush()
}

// WriteMeasurements renders the stored points of a dataset.
func (w *Writer) WriteMeasurements(points []models.MeasurementPoint) error {
	if w.format != FormatText {
		return w.encode(points)
	}

	tw := newTabWriter(w.out)
	fmt.Fprintf(tw, "ID\tCONTROL\tEVENTS\tLIVE TIME (us)\tSOURCE\n")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%g\t%d\t%.0f\t%s\n", p.ID, p.ControlValue, p.EventCount, p.LiveTimeMicros, p.Source)
	}
	return tw.Flush()
}

// WriteDatasets renders the catalog overview.
func (w *Writer) WriteDatasets(datasets []storage.DatasetInfo) error {
	if w.format != FormatText {
		return w.encode(datasets)
	}

	tw := newTabWriter(w.out)
	fmt.Fprintf(tw, "DATASET\tPOINTS\n")
	for _, d := range datasets {
		fmt.Fprintf(tw, "%s\t%d\n", d.Name, d.Points)
	}
	return tw.Flush()
}

func newTabWriter(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func (w *Writer) encode(v interface{}) error {
	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	}
	return nil
}
