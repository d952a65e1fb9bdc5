package rate

import (
	"math"

	"github.com/rewired-gh/ratescan/internal/models"
)

// Exponential evaluates A*exp(lambda*(x-x0)). It is kept for inspection only;
// the pipeline fits the log-linear form.
func Exponential(x, amplitude, lambda, x0 float64) float64 {
	return amplitude * math.Exp(lambda*(x-x0))
}

// LinearLogSpace evaluates a*x + b, the log-space rate model.
func LinearLogSpace(x, a, b float64) float64 {
	return a*x + b
}

// CurvePoint is one sample of a fitted curve in rate units.
type CurvePoint struct {
	X    float64 `json:"x" yaml:"x"`
	Rate float64 `json:"rate" yaml:"rate"`
}

// Curve samples exp(a*x+b) at the given abscissae.
func Curve(fit models.FitResult, xs []float64) []CurvePoint {
	out := make([]CurvePoint, len(xs))
	for i, x := range xs {
		out[i] = CurvePoint{X: x, Rate: math.Exp(LinearLogSpace(x, fit.Slope, fit.Intercept))}
	}
	return out
}

// Span returns min, min+step, ... up to but excluding max. A non-positive step or an
// empty range yields nil.
func Span(min, max, step float64) []float64 {
	if step <= 0 || max <= min {
		return nil
	}
	n := int(math.Ceil((max - min) / step))
	xs := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		xs = append(xs, min+float64(i)*step)
	}
	return xs
}
