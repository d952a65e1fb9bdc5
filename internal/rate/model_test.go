package rate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rewired-gh/ratescan/internal/models"
)

func TestExponential(t *testing.T) {
	assert.InDelta(t, 2.0, Exponential(900, 2.0, -0.5, 900), 1e-15)
	assert.InDelta(t, 2.0*math.Exp(-0.5), Exponential(901, 2.0, -0.5, 900), 1e-15)
}

func TestLinearLogSpaceMatchesExponential(t *testing.T) {
	fit := models.FitResult{Slope: -0.0042, Intercept: 1.3}
	amp, lambda := fit.Exponential(800)
	for _, x := range []float64{0, 250, 800, 1999} {
		want := math.Exp(LinearLogSpace(x, fit.Slope, fit.Intercept))
		assert.InEpsilon(t, want, Exponential(x, amp, lambda, 800), 1e-12)
	}
}

func TestCurve(t *testing.T) {
	fit := models.FitResult{Slope: -0.01, Intercept: 2}
	curve := Curve(fit, []float64{0, 100})
	assert.Len(t, curve, 2)
	assert.InDelta(t, math.Exp(2), curve[0].Rate, 1e-12)
	assert.InDelta(t, math.Exp(1), curve[1].Rate, 1e-12)
	assert.Equal(t, 100.0, curve[1].X)
}

func TestSpan(t *testing.T) {
	xs := Span(0, 2000, 1)
	assert.Len(t, xs, 2000)
	assert.Equal(t, 0.0, xs[0])
	assert.Equal(t, 1999.0, xs[len(xs)-1])

	assert.Len(t, Span(700, 1000, 0.5), 600)
	assert.Nil(t, Span(10, 10, 1))
	assert.Nil(t, Span(0, 10, 0))
}
