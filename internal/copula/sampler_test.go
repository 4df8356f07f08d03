package copula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/stitts-dev/parlay-evaluator/internal/parlay"
)

func identityFactor(n int) *mat.TriDense {
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		data[i*n+i] = 1
	}
	return mat.NewTriDense(n, mat.Lower, data)
}

func TestSample_RejectsLowDegreesOfFreedom(t *testing.T) {
	cache := NewCache()
	_, err := Sample(cache, identityFactor(1), []float64{0}, 2.0, 2.5, 30.0, 42, 1, 1000)
	require.Error(t, err)
	assert.Equal(t, parlay.ErrDegreesOfFreedomTooLow, parlay.CodeOf(err))
}

func TestSample_ClampsDegreesOfFreedomAboveMax(t *testing.T) {
	cache := NewCache()
	l := identityFactor(1)
	z := []float64{0}

	out1, err := Sample(cache, l, z, 50.0, 2.5, 30.0, 42, 1, 5000)
	require.NoError(t, err)
	out2, err := Sample(cache, l, z, 30.0, 2.5, 30.0, 42, 1, 5000)
	require.NoError(t, err)

	assert.Equal(t, out1.TrueProb, out2.TrueProb)
}

func TestSample_RejectsTooManyLegs(t *testing.T) {
	cache := NewCache()
	_, err := Sample(cache, identityFactor(7), make([]float64, 7), 5.0, 2.5, 30.0, 42, 7, 1000)
	require.Error(t, err)
	assert.Equal(t, parlay.ErrTooManyLegs, parlay.CodeOf(err))
}

func TestSample_SingleLegThresholdZeroConvergesToHalf(t *testing.T) {
	cache := NewCache()
	out, err := Sample(cache, identityFactor(1), []float64{0}, 5.0, 2.5, 30.0, 42, 1, 20000)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out.TrueProb, 0.02)
	assert.InDelta(t, 0.5, out.PerLegHitRate[0], 0.02)
}

func TestSample_DeterministicGivenSameSeed(t *testing.T) {
	cache := NewCache()
	l := identityFactor(2)
	z := []float64{0.1, -0.2}

	out1, err := Sample(cache, l, z, 5.0, 2.5, 30.0, 42, 2, 5000)
	require.NoError(t, err)
	out2, err := Sample(cache, l, z, 5.0, 2.5, 30.0, 42, 2, 5000)
	require.NoError(t, err)

	assert.Equal(t, out1.TrueProb, out2.TrueProb)
	assert.Equal(t, out1.PerLegHitRate, out2.PerLegHitRate)
}

func TestSample_IndependenceIdentityWhenRIsIdentity(t *testing.T) {
	cache := NewCache()
	l := identityFactor(2)
	z := []float64{0.05, -0.1}

	out, err := Sample(cache, l, z, 5.0, 2.5, 30.0, 7, 2, 20000)
	require.NoError(t, err)

	independence := out.PerLegHitRate[0] * out.PerLegHitRate[1]
	assert.InDelta(t, independence, out.TrueProb, 0.02)
}

func TestCache_WarmIsIdempotent(t *testing.T) {
	cache := NewCache()
	require.NoError(t, cache.Warm(3, 1000))
	require.NoError(t, cache.Warm(3, 1000))
	assert.Len(t, cache.kernels, 1)
}
