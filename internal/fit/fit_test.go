package fit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/ratescan/internal/models"
	"github.com/rewired-gh/ratescan/internal/rate"
)

func ones(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}

func TestLinear_ExactLineRecovered(t *testing.T) {
	cases := []struct {
		name string
		a, b float64
		x    []float64
	}{
		{"small integers", 2.5, -1.25, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{"threshold range", -0.0043, 1.62, []float64{100, 200, 500, 1000, 1500, 1600}},
		{"voltage range", 0.0393, -33.1, []float64{770, 780, 800, 820, 900}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			y := make([]float64, len(tc.x))
			for i, x := range tc.x {
				y[i] = tc.a*x + tc.b
			}
			res, err := Linear(tc.x, y, ones(len(tc.x)))
			require.NoError(t, err)

			assert.InEpsilon(t, tc.a, res.Slope, 1e-9)
			assert.InEpsilon(t, tc.b, res.Intercept, 1e-9)
			assert.Less(t, res.SlopeVariance, 1e-20)
			assert.Less(t, res.InterceptVariance, 1e-16)
			assert.GreaterOrEqual(t, res.SlopeVariance, 0.0)
			assert.Equal(t, len(tc.x)-2, res.NDF)
		})
	}
}

// closedForm is the textbook weighted straight-line solution used as a reference.
func closedForm(x, y, sigma []float64) (a, b, varA, varB, cov float64) {
	var s, sx, sy, sxx, sxy float64
	for i := range x {
		w := 1 / (sigma[i] * sigma[i])
		s += w
		sx += w * x[i]
		sy += w * y[i]
		sxx += w * x[i] * x[i]
		sxy += w * x[i] * y[i]
	}
	d := s*sxx - sx*sx
	return (s*sxy - sx*sy) / d, (sxx*sy - sx*sxy) / d, s / d, sxx / d, -sx / d
}

func TestLinear_AbsoluteMatchesClosedForm(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}
	y := []float64{2.1, 3.9, 6.2, 7.8, 10.1, 12.2}
	sigma := []float64{0.1, 0.2, 0.1, 0.3, 0.2, 0.5}

	res, err := Linear(x, y, sigma, WithCovariance(Absolute))
	require.NoError(t, err)

	a, b, varA, varB, cov := closedForm(x, y, sigma)
	assert.InEpsilon(t, a, res.Slope, 1e-10)
	assert.InEpsilon(t, b, res.Intercept, 1e-9)
	assert.InEpsilon(t, varA, res.SlopeVariance, 1e-9)
	assert.InEpsilon(t, varB, res.InterceptVariance, 1e-9)
	assert.InEpsilon(t, cov, res.Covariance, 1e-9)

	var chi2 float64
	for i := range x {
		r := (y[i] - (a*x[i] + b)) / sigma[i]
		chi2 += r * r
	}
	assert.InEpsilon(t, chi2, res.Chi2, 1e-8)

	scaled, err := Linear(x, y, sigma)
	require.NoError(t, err)
	f := chi2 / 4
	assert.InEpsilon(t, varA*f, scaled.SlopeVariance, 1e-8)
	assert.InEpsilon(t, varB*f, scaled.InterceptVariance, 1e-8)
	assert.InEpsilon(t, res.Slope, scaled.Slope, 1e-12)
}

func TestLinear_WeightsSpanningDecades(t *testing.T) {
	// Uncertainties ranging over six orders of magnitude must not disturb an exact line.
	x := []float64{100, 200, 500, 1000, 1500, 1600, 1900}
	sigma := []float64{1e-4, 1e-3, 1e-2, 1e-1, 1, 10, 100}
	y := make([]float64, len(x))
	for i := range x {
		y[i] = -0.0051*x[i] + 2.2
	}
	res, err := Linear(x, y, sigma, WithCovariance(Absolute))
	require.NoError(t, err)
	assert.InEpsilon(t, -0.0051, res.Slope, 1e-9)
	assert.InEpsilon(t, 2.2, res.Intercept, 1e-9)
	assert.Greater(t, res.SlopeVariance, 0.0)
}

func TestLinear_Degenerate(t *testing.T) {
	tests := []struct {
		name  string
		x     []float64
		y     []float64
		sigma []float64
	}{
		{"too few points", []float64{1, 2}, []float64{1, 2}, []float64{1, 1}},
		{"length mismatch", []float64{1, 2, 3}, []float64{1, 2}, []float64{1, 1, 1}},
		{"zero uncertainty", []float64{1, 2, 3}, []float64{1, 2, 3}, []float64{1, 0, 1}},
		{"negative uncertainty", []float64{1, 2, 3}, []float64{1, 2, 3}, []float64{1, -1, 1}},
		{"NaN uncertainty", []float64{1, 2, 3}, []float64{1, 2, 3}, []float64{1, math.NaN(), 1}},
		{"collinear control values", []float64{5, 5, 5, 5}, []float64{1, 2, 3, 4}, []float64{1, 1, 1, 1}},
		{"infinite observation", []float64{1, 2, 3}, []float64{1, math.Inf(-1), 3}, []float64{1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Linear(tt.x, tt.y, tt.sigma)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrNumerical)
		})
	}
}

func TestLinear_ConditionLimit(t *testing.T) {
	x := []float64{1e6, 1e6 + 1e-3, 1e6 + 2e-3}
	y := []float64{1, 2, 3}
	_, err := Linear(x, y, ones(3), WithMaxCondition(1e3))
	assert.ErrorIs(t, err, models.ErrNumerical)
}

func TestRates_ThresholdScan(t *testing.T) {
	points, err := rate.Points(
		[]float64{100, 200, 500, 1000, 1500, 1600},
		[]int64{1016, 10312, 1366, 788, 219, 175},
		[]float64{237586098, 6077235458, 7303274908, 55671388106, 40782411792, 51916440020},
	)
	require.NoError(t, err)

	res, series, err := Rates(points)
	require.NoError(t, err)
	require.Len(t, series.Rates, 6)

	assert.Less(t, res.Slope, 0.0, "rate must fall with threshold")
	for _, v := range []float64{res.SlopeVariance, res.InterceptVariance} {
		assert.Greater(t, v, 0.0)
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v))
	}
	assert.Equal(t, 6, res.Points)
	assert.Equal(t, 4, res.NDF)
}

func TestRates_VoltageScan(t *testing.T) {
	points, err := rate.Points(
		[]float64{770, 780, 800, 820, 900},
		[]int64{1960, 3892, 3752, 3667, 1663},
		[]float64{252105951892, 334381781888, 169956793137, 82846479017, 1797973592},
	)
	require.NoError(t, err)

	res, _, err := Rates(points)
	require.NoError(t, err)
	assert.Greater(t, res.Slope, 0.0, "rate must grow with bias voltage")
	assert.Greater(t, res.SlopeVariance, 0.0)
}

func TestRates_ZeroCountIsDomainError(t *testing.T) {
	points := []models.MeasurementPoint{
		{ControlValue: 100, EventCount: 50, LiveTimeMicros: 1e6},
		{ControlValue: 200, EventCount: 0, LiveTimeMicros: 1e6},
		{ControlValue: 300, EventCount: 5, LiveTimeMicros: 1e6},
		{ControlValue: 400, EventCount: 2, LiveTimeMicros: 1e6},
	}
	_, _, err := Rates(points)
	assert.ErrorIs(t, err, models.ErrDomain)

	kept, _ := rate.ExcludeZeroCounts(points)
	res, _, err := Rates(kept)
	require.NoError(t, err)
	assert.Less(t, res.Slope, 0.0)
}

func TestParseCovarianceMode(t *testing.T) {
	m, err := ParseCovarianceMode("absolute")
	require.NoError(t, err)
	assert.Equal(t, Absolute, m)
	assert.Equal(t, "absolute", m.String())

	m, err = ParseCovarianceMode("")
	require.NoError(t, err)
	assert.Equal(t, Scaled, m)

	_, err = ParseCovarianceMode("bootstrap")
	assert.ErrorIs(t, err, models.ErrConfiguration)
}
