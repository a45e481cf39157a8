package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCovarianceMatrix_MatchesPairwiseCovariance(t *testing.T) {
	a := []float64{0.01, -0.02, 0.015, 0.003, -0.007}
	b := []float64{0.02, -0.01, 0.005, 0.001, -0.004}
	c := []float64{-0.01, 0.02, 0.0, 0.004, 0.006}

	cov, err := CovarianceMatrix([][]float64{a, b, c})
	require.NoError(t, err)
	require.Len(t, cov, 3)

	cols := [][]float64{a, b, c}
	for i := range cols {
		for j := range cols {
			assert.InDelta(t, Covariance(cols[i], cols[j]), cov[i][j], 1e-15)
			assert.InDelta(t, cov[i][j], cov[j][i], 1e-18, "covariance should be symmetric")
		}
	}
	assert.InDelta(t, Variance(a), cov[0][0], 1e-15)
}

func TestCovarianceMatrix_Errors(t *testing.T) {
	_, err := CovarianceMatrix(nil)
	assert.Error(t, err)

	_, err = CovarianceMatrix([][]float64{{0.1, 0.2}, {0.1}})
	assert.Error(t, err, "ragged columns should fail")

	_, err = CovarianceMatrix([][]float64{{0.1}, {0.2}})
	assert.Error(t, err, "single observation should fail")
}

func TestCorrelationMatrixFromCovariance(t *testing.T) {
	cov := [][]float64{
		{0.04, 0.03, 0.00},
		{0.03, 0.09, -0.01},
		{0.00, -0.01, 0.01},
	}

	corr, err := CorrelationMatrixFromCovariance(cov)
	require.NoError(t, err)

	for i := range corr {
		assert.Equal(t, 1.0, corr[i][i])
	}
	assert.InDelta(t, 0.03/math.Sqrt(0.04*0.09), corr[0][1], 1e-12)
	assert.InDelta(t, corr[0][1], corr[1][0], 1e-15)
	assert.InDelta(t, 0.0, corr[0][2], 1e-15)
}

func TestCorrelationMatrixFromCovariance_RejectsZeroVariance(t *testing.T) {
	_, err := CorrelationMatrixFromCovariance([][]float64{{0.04, 0}, {0, 0}})
	assert.Error(t, err)

	_, err = CorrelationMatrixFromCovariance([][]float64{{0.04, 0}})
	assert.Error(t, err, "non-square input should fail")
}

func TestCorrelationToDistance(t *testing.T) {
	corrMatrix := [][]float64{
		{1.0, 0.8, 0.0, -1.0},
		{0.8, 1.0, 0.7, 0.2},
		{0.0, 0.7, 1.0, 1.0000001},
		{-1.0, 0.2, 1.0000001, 1.0},
	}

	distMatrix := CorrelationToDistance(corrMatrix)

	for i := range distMatrix {
		assert.Equal(t, 0.0, distMatrix[i][i], "self-distance should be 0")
		for j := range distMatrix {
			assert.InDelta(t, distMatrix[i][j], distMatrix[j][i], 1e-15, "distance matrix should be symmetric")
			assert.GreaterOrEqual(t, distMatrix[i][j], 0.0, "distances should be non-negative")
		}
	}

	assert.InDelta(t, math.Sqrt(0.5), distMatrix[0][2], 1e-15, "uncorrelated assets sit at sqrt(0.5)")
	assert.InDelta(t, 1.0, distMatrix[0][3], 1e-15, "anti-correlated assets sit at 1")
	assert.Equal(t, 0.0, distMatrix[2][3], "correlation above 1 is clamped to distance 0")
	assert.Less(t, distMatrix[0][1], distMatrix[1][2], "higher correlation should have lower distance")
}

func TestInverseVarianceWeights(t *testing.T) {
	w := InverseVarianceWeights([]float64{0.01, 0.04})
	assert.InDelta(t, 0.8, w[0], 1e-12)
	assert.InDelta(t, 0.2, w[1], 1e-12)

	w = InverseVarianceWeights([]float64{0.01, 0})
	assert.InDelta(t, 1.0, w[0], 1e-12)
	assert.Equal(t, 0.0, w[1])

	w = InverseVarianceWeights([]float64{0, 0, 0, 0})
	for _, v := range w {
		assert.InDelta(t, 0.25, v, 1e-12)
	}

	assert.Empty(t, InverseVarianceWeights(nil))
}

func TestPortfolioVariance(t *testing.T) {
	cov := [][]float64{
		{0.04, 0.01, 0.0},
		{0.01, 0.09, 0.0},
		{0.0, 0.0, 0.25},
	}

	v := PortfolioVariance(cov, []int{0, 1}, []float64{0.5, 0.5})
	assert.InDelta(t, 0.25*0.04+0.25*0.09+2*0.25*0.01, v, 1e-15)

	v = PortfolioVariance(cov, []int{2}, []float64{1})
	assert.InDelta(t, 0.25, v, 1e-15)
}

func TestClampCorrelation(t *testing.T) {
	assert.Equal(t, 1.0, ClampCorrelation(1.5))
	assert.Equal(t, 1.0, ClampCorrelation(1-1e-15), "rounding noise snaps to 1")
	assert.Equal(t, -1.0, ClampCorrelation(-1+1e-15))
	assert.Equal(t, 0.0, ClampCorrelation(math.NaN()))
	assert.Equal(t, 0.5, ClampCorrelation(0.5))
}

func TestCorrelationMatrixFromCovariance_IdenticalSeries(t *testing.T) {
	a := []float64{0.013, -0.021, 0.007, 0.019, -0.004}
	cov, err := CovarianceMatrix([][]float64{a, append([]float64(nil), a...)})
	require.NoError(t, err)

	corr, err := CorrelationMatrixFromCovariance(cov)
	require.NoError(t, err)
	assert.Equal(t, 1.0, corr[0][1])
	assert.Equal(t, 0.0, CorrelationToDistance(corr)[0][1])
}
