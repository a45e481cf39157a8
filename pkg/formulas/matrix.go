package formulas

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CovarianceMatrix computes the sample covariance matrix (N-1 denominator)
// of the given columns. Every column holds one asset's observations and all
// columns must have the same length of at least 2.
func CovarianceMatrix(columns [][]float64) ([][]float64, error) {
	n := len(columns)
	if n == 0 {
		return nil, fmt.Errorf("no columns provided")
	}
	rows := len(columns[0])
	for j, col := range columns {
		if len(col) != rows {
			return nil, fmt.Errorf("column %d has %d observations, expected %d", j, len(col), rows)
		}
	}
	if rows < 2 {
		return nil, fmt.Errorf("need at least 2 observations, got %d", rows)
	}

	data := mat.NewDense(rows, n, nil)
	for j, col := range columns {
		data.SetCol(j, col)
	}

	var sym mat.SymDense
	stat.CovarianceMatrix(&sym, data, nil)

	cov := make([][]float64, n)
	for i := 0; i < n; i++ {
		cov[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			cov[i][j] = sym.At(i, j)
		}
	}
	return cov, nil
}

// CorrelationMatrixFromCovariance calculates the correlation matrix from a covariance matrix.
//
// Formula: corr(i,j) = cov(i,j) / sqrt(cov(i,i) * cov(j,j))
func CorrelationMatrixFromCovariance(cov [][]float64) ([][]float64, error) {
	n := len(cov)
	if n == 0 {
		return nil, fmt.Errorf("empty covariance matrix")
	}
	for i := 0; i < n; i++ {
		if len(cov[i]) != n {
			return nil, fmt.Errorf("covariance matrix is not square")
		}
	}

	vars := make([]float64, n)
	for i := 0; i < n; i++ {
		v := cov[i][i]
		if v <= 0 || !IsFinite(v) {
			return nil, fmt.Errorf("invalid variance on diagonal at %d: %v", i, v)
		}
		vars[i] = v
	}

	corr := make([][]float64, n)
	for i := 0; i < n; i++ {
		corr[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		corr[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			val := cov[i][j] / math.Sqrt(vars[i]*vars[j])
			val = ClampCorrelation(val)
			corr[i][j] = val
			corr[j][i] = val
		}
	}

	return corr, nil
}

// correlationSnapTolerance absorbs rounding in cov/sqrt(var*var) so that
// identical series correlate at exactly 1.
const correlationSnapTolerance = 1e-12

// ClampCorrelation clamps a correlation to [-1, 1]; NaN maps to 0. Values
// within 1e-12 of ±1 snap to ±1.
func ClampCorrelation(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	if c >= 1.0-correlationSnapTolerance {
		return 1.0
	}
	if c <= -1.0+correlationSnapTolerance {
		return -1.0
	}
	return c
}

// CorrelationToDistance converts a correlation matrix to the HRP distance matrix.
//
// Distance formula: d_ij = sqrt(max(0, 0.5 * (1 - ρ_ij)))
//
// Perfectly correlated assets sit at distance 0, uncorrelated ones at
// sqrt(0.5) and perfectly anti-correlated ones at 1. The diagonal is 0.
func CorrelationToDistance(corrMatrix [][]float64) [][]float64 {
	n := len(corrMatrix)
	distMatrix := make([][]float64, n)

	for i := 0; i < n; i++ {
		distMatrix[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			corr := ClampCorrelation(corrMatrix[i][j])
			distMatrix[i][j] = math.Sqrt(math.Max(0, 0.5*(1.0-corr)))
		}
	}

	return distMatrix
}

// InverseVarianceWeights calculates inverse-variance weights.
//
// Formula: w_i = (1/v_i) / Σ(1/v_j)
//
// Non-positive variances get weight 0. If no variance is positive the
// result is equal weights.
func InverseVarianceWeights(variances []float64) []float64 {
	n := len(variances)
	weights := make([]float64, n)
	if n == 0 {
		return weights
	}

	var totalInvVariance float64
	for _, v := range variances {
		if v > 0 {
			totalInvVariance += 1.0 / v
		}
	}

	if totalInvVariance == 0 {
		for i := range weights {
			weights[i] = 1.0 / float64(n)
		}
		return weights
	}

	for i, v := range variances {
		if v > 0 {
			weights[i] = (1.0 / v) / totalInvVariance
		}
	}

	return weights
}

// PortfolioVariance returns w^T Σ w for the sub-matrix of cov selected by idxs.
// weights is aligned with idxs.
func PortfolioVariance(cov [][]float64, idxs []int, weights []float64) float64 {
	variance := 0.0
	for a, i := range idxs {
		for b, j := range idxs {
			variance += weights[a] * cov[i][j] * weights[b]
		}
	}
	return variance
}
