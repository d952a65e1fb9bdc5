// Package fit performs the weighted least-squares regression of log(rate) against the
// control variable and recovers the parameter covariance.
package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rewired-gh/ratescan/internal/models"
	"github.com/rewired-gh/ratescan/internal/rate"
)

// MinPoints is the smallest sample that leaves a degree of freedom for the covariance.
const MinPoints = 3

// MaxCondition bounds the condition number of the weighted design matrix.
const MaxCondition = 1e14

// CovarianceMode selects how the parameter covariance is normalised.
type CovarianceMode int

const (
	// Scaled multiplies the covariance by chi2/(N-2), so the reported errors reflect
	// the observed scatter around the line.
	Scaled CovarianceMode = iota
	// Absolute takes the supplied uncertainties at face value.
	Absolute
)

// ParseCovarianceMode maps a configuration string to a CovarianceMode.
func ParseCovarianceMode(s string) (CovarianceMode, error) {
	switch s {
	case "", "scaled":
		return Scaled, nil
	case "absolute":
		return Absolute, nil
	default:
		return Scaled, fmt.Errorf("%w: unknown covariance mode %q", models.ErrConfiguration, s)
	}
}

func (m CovarianceMode) String() string {
	if m == Absolute {
		return "absolute"
	}
	return "scaled"
}

type options struct {
	mode    CovarianceMode
	maxCond float64
}

// Option configures a fit.
type Option func(*options)

// WithCovariance sets the covariance normalisation.
func WithCovariance(mode CovarianceMode) Option {
	return func(o *options) { o.mode = mode }
}

// WithMaxCondition overrides MaxCondition.
func WithMaxCondition(c float64) Option {
	return func(o *options) { o.maxCond = c }
}

// Linear fits y = a*x + b by weighted least squares with weights 1/sigma^2.
// The weighted design matrix is factorised with Householder QR and the covariance is
// (R^T R)^-1, scaled by chi2/(N-2) unless Absolute is requested.
func Linear(x, y, sigma []float64, opts ...Option) (models.FitResult, error) {
	o := options{mode: Scaled, maxCond: MaxCondition}
	for _, opt := range opts {
		opt(&o)
	}

	n := len(x)
	if len(y) != n || len(sigma) != n {
		return models.FitResult{}, fmt.Errorf("%w: series lengths differ (x=%d, y=%d, sigma=%d)",
			models.ErrNumerical, n, len(y), len(sigma))
	}
	if n < MinPoints {
		return models.FitResult{}, fmt.Errorf("%w: need at least %d points, got %d",
			models.ErrNumerical, MinPoints, n)
	}
	distinct := false
	for i := 0; i < n; i++ {
		if !(sigma[i] > 0) || math.IsInf(sigma[i], 0) {
			return models.FitResult{}, fmt.Errorf("%w: point %d has invalid uncertainty %g",
				models.ErrNumerical, i, sigma[i])
		}
		if !isFinite(x[i]) || !isFinite(y[i]) {
			return models.FitResult{}, fmt.Errorf("%w: point %d is not finite (x=%g, y=%g)",
				models.ErrNumerical, i, x[i], y[i])
		}
		if x[i] != x[0] {
			distinct = true
		}
	}
	if !distinct {
		return models.FitResult{}, fmt.Errorf("%w: all control values equal %g", models.ErrNumerical, x[0])
	}

	design := mat.NewDense(n, 2, nil)
	obs := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		w := 1 / sigma[i]
		design.Set(i, 0, x[i]*w)
		design.Set(i, 1, w)
		obs.SetVec(i, y[i]*w)
	}

	var qr mat.QR
	qr.Factorize(design)
	if c := qr.Cond(); math.IsNaN(c) || c > o.maxCond {
		return models.FitResult{}, fmt.Errorf("%w: design matrix is ill-conditioned (cond=%g)",
			models.ErrNumerical, c)
	}

	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, obs); err != nil {
		return models.FitResult{}, fmt.Errorf("%w: least-squares solve failed: %v", models.ErrNumerical, err)
	}

	var r mat.Dense
	qr.RTo(&r)
	var rInv mat.Dense
	if err := rInv.Inverse(r.Slice(0, 2, 0, 2)); err != nil {
		return models.FitResult{}, fmt.Errorf("%w: cannot invert R: %v", models.ErrNumerical, err)
	}
	var cov mat.Dense
	cov.Mul(&rInv, rInv.T())

	var pred, resid mat.VecDense
	pred.MulVec(design, &beta)
	resid.SubVec(obs, &pred)
	chi2 := mat.Dot(&resid, &resid)
	ndf := n - 2

	if o.mode == Scaled {
		cov.Scale(chi2/float64(ndf), &cov)
	}

	return models.FitResult{
		Slope:             beta.AtVec(0),
		Intercept:         beta.AtVec(1),
		SlopeVariance:     cov.At(0, 0),
		InterceptVariance: cov.At(1, 1),
		Covariance:        cov.At(0, 1),
		Chi2:              chi2,
		NDF:               ndf,
		Points:            n,
	}, nil
}

// Rates propagates counting uncertainties for the points and fits log(rate) against
// the control value. Zero-count points fail with models.ErrDomain and must be excluded
// by the caller.
func Rates(points []models.MeasurementPoint, opts ...Option) (models.FitResult, rate.Series, error) {
	controls, counts, liveTimes := rate.Split(points)
	series, err := rate.Propagate(counts, liveTimes)
	if err != nil {
		return models.FitResult{}, rate.Series{}, err
	}
	logRate, sigma := series.Values()
	res, err := Linear(controls, logRate, sigma, opts...)
	if err != nil {
		return models.FitResult{}, rate.Series{}, err
	}
	return res, series, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
