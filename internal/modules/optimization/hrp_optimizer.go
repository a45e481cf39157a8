package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/hrpfolio/pkg/formulas"
)

const (
	defaultTieTolerance = 1e-12
	// Variances at or below this are treated as zero and the asset is left out of clustering.
	zeroVarianceThreshold = 1e-20
)

// HRPOptions configures the allocator.
type HRPOptions struct {
	Linkage      Linkage
	TieTolerance float64
}

// DefaultHRPOptions returns Ward linkage with a 1e-12 tie tolerance.
func DefaultHRPOptions() HRPOptions {
	return HRPOptions{Linkage: DefaultLinkage, TieTolerance: defaultTieTolerance}
}

// HRPOptimizer performs Hierarchical Risk Parity allocation. It keeps no
// state between calls and is safe for concurrent use.
type HRPOptimizer struct {
	opts HRPOptions
}

// NewHRPOptimizer creates a new HRP optimizer. Zero-valued options and
// unknown linkage names fall back to defaults.
func NewHRPOptimizer(opts HRPOptions) *HRPOptimizer {
	linkage, err := ParseLinkage(string(opts.Linkage))
	if err != nil {
		linkage = DefaultLinkage
	}
	opts.Linkage = linkage
	if opts.TieTolerance <= 0 {
		opts.TieTolerance = defaultTieTolerance
	}
	return &HRPOptimizer{opts: opts}
}

// Options returns the effective options.
func (hrp *HRPOptimizer) Options() HRPOptions {
	return hrp.opts
}

// Allocate returns the HRP weight vector for the given returns. Every asset
// in the universe gets an entry; the weights sum to 1.
func (hrp *HRPOptimizer) Allocate(returns ReturnsMatrix) (WeightVector, error) {
	alloc, err := hrp.AllocateDetailed(returns)
	if err != nil {
		return nil, err
	}
	return alloc.Weights, nil
}

// AllocateDetailed runs the full HRP pipeline:
// 1) Sample covariance over rows with no missing values
// 2) Distance: d_ij = sqrt(0.5 * (1 - ρ_ij))
// 3) Agglomerative clustering (configurable linkage, index-based tie-break)
// 4) Quasi-diagonalization (leaf order from dendrogram)
// 5) Recursive bisection allocation (cluster variance via IVP)
func (hrp *HRPOptimizer) AllocateDetailed(returns ReturnsMatrix) (*Allocation, error) {
	if err := returns.Validate(); err != nil {
		return nil, err
	}

	if len(returns.Assets) == 1 {
		return singleAssetAllocation(returns.Assets[0], hrp.opts.Linkage, returns.Periods()), nil
	}

	columns, periods := usableColumns(returns)
	if periods < 2 {
		return nil, fmt.Errorf("%w: need at least 2 usable periods, got %d", ErrInsufficientData, periods)
	}

	cov, err := formulas.CovarianceMatrix(columns)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate covariance matrix: %w", err)
	}

	return hrp.allocate(cov, returns.Assets, periods)
}

// AllocateCovariance runs the pipeline from step 2 onwards on a
// pre-computed covariance matrix aligned with assets.
func (hrp *HRPOptimizer) AllocateCovariance(cov [][]float64, assets []string) (*Allocation, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: empty asset universe", ErrInvalidReturns)
	}
	if len(cov) != len(assets) {
		return nil, fmt.Errorf("%w: covariance matrix size %d does not match %d assets", ErrInvalidReturns, len(cov), len(assets))
	}
	seen := make(map[string]struct{}, len(assets))
	for i, asset := range assets {
		if _, dup := seen[asset]; dup || asset == "" {
			return nil, fmt.Errorf("%w: invalid or duplicate asset %q", ErrInvalidReturns, asset)
		}
		seen[asset] = struct{}{}
		if len(cov[i]) != len(assets) {
			return nil, fmt.Errorf("%w: covariance matrix is not square", ErrInvalidReturns)
		}
		for _, v := range cov[i] {
			if !formulas.IsFinite(v) {
				return nil, fmt.Errorf("%w: covariance matrix contains non-finite values", ErrInvalidReturns)
			}
		}
	}

	if len(assets) == 1 {
		return singleAssetAllocation(assets[0], hrp.opts.Linkage, 0), nil
	}
	return hrp.allocate(cov, assets, 0)
}

func (hrp *HRPOptimizer) allocate(cov [][]float64, assets []string, periods int) (*Allocation, error) {
	active := make([]int, 0, len(assets))
	excluded := make([]string, 0)
	for i, asset := range assets {
		if cov[i][i] > zeroVarianceThreshold {
			active = append(active, i)
		} else {
			excluded = append(excluded, asset)
		}
	}

	if len(active) == 0 {
		return nil, fmt.Errorf("%w: all %d assets have zero variance", ErrDegenerateMatrix, len(assets))
	}
	if len(active) == 1 {
		return nil, fmt.Errorf("%w: only %s has non-zero variance", ErrInsufficientData, assets[active[0]])
	}

	activeAssets := make([]string, len(active))
	sub := make([][]float64, len(active))
	for a, i := range active {
		activeAssets[a] = assets[i]
		sub[a] = make([]float64, len(active))
		for b, j := range active {
			sub[a][b] = cov[i][j]
		}
	}

	corr, err := formulas.CorrelationMatrixFromCovariance(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateMatrix, err)
	}
	dist := formulas.CorrelationToDistance(corr)

	root := hrp.buildDendrogram(dist)
	order := hrp.quasiDiagonalOrder(root)
	if len(order) != len(active) {
		return nil, fmt.Errorf("invalid HRP order length %d, expected %d", len(order), len(active))
	}

	weights := make([]float64, len(active))
	for i := range weights {
		weights[i] = 1.0
	}
	hrp.recursiveBisectionAllocate(weights, sub, order)

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 || !formulas.IsFinite(sum) {
		return nil, fmt.Errorf("%w: invalid HRP weight sum %v", ErrDegenerateMatrix, sum)
	}

	result := make(WeightVector, len(assets))
	for _, asset := range excluded {
		result[asset] = 0
	}
	for a, asset := range activeAssets {
		result[asset] = weights[a] / sum
	}

	orderedAssets := make([]string, len(order))
	for k, idx := range order {
		orderedAssets[k] = activeAssets[idx]
	}

	return &Allocation{
		Weights:    result,
		Order:      orderedAssets,
		Excluded:   excluded,
		Assets:     activeAssets,
		Tree:       root,
		Covariance: sub,
		Distance:   dist,
		Linkage:    hrp.opts.Linkage,
		Periods:    periods,
	}, nil
}

// buildDendrogram merges the closest pair of clusters until one remains.
// Cluster distances are maintained with the Lance-Williams recurrence.
func (hrp *HRPOptimizer) buildDendrogram(dist [][]float64) *ClusterNode {
	n := len(dist)
	nodes := make([]*ClusterNode, n)
	d := make([][]float64, n)
	active := make([]int, n)
	for i := 0; i < n; i++ {
		nodes[i] = &ClusterNode{ID: i, Leaves: []int{i}}
		d[i] = append([]float64(nil), dist[i]...)
		active[i] = i
	}

	tol := hrp.opts.TieTolerance
	nextID := n

	for len(active) > 1 {
		bestA, bestB := 0, 1
		bestD := d[active[0]][active[1]]

		for a := 0; a < len(active); a++ {
			for b := a + 1; b < len(active); b++ {
				if a == 0 && b == 1 {
					continue
				}
				i, j := active[a], active[b]
				dij := d[i][j]
				switch {
				case dij < bestD-tol:
				case math.Abs(dij-bestD) <= tol &&
					clusterPairLess(nodes[i], nodes[j], nodes[active[bestA]], nodes[active[bestB]]):
				default:
					continue
				}
				bestD = dij
				bestA, bestB = a, b
			}
		}

		si, sj := active[bestA], active[bestB]
		left, right := nodes[si], nodes[sj]
		if right.minLeaf() < left.minLeaf() {
			left, right = right, left
		}

		leaves := make([]int, 0, len(left.Leaves)+len(right.Leaves))
		leaves = append(leaves, left.Leaves...)
		leaves = append(leaves, right.Leaves...)

		merged := &ClusterNode{
			ID:       nextID,
			Left:     left,
			Right:    right,
			Distance: bestD,
			Leaves:   leaves,
		}
		nextID++

		ni, nj := len(nodes[si].Leaves), len(nodes[sj].Leaves)
		for _, k := range active {
			if k == si || k == sj {
				continue
			}
			nd := hrp.opts.Linkage.update(d[k][si], d[k][sj], bestD, ni, nj, len(nodes[k].Leaves))
			d[k][si] = nd
			d[si][k] = nd
		}

		// The merged cluster takes over slot si; slot sj is retired.
		nodes[si] = merged
		active = append(active[:bestB], active[bestB+1:]...)
	}

	return nodes[active[0]]
}

// clusterPairLess orders candidate merges that are tied on distance: lower
// combined leaf-index sum first, then lower minimum leaf.
func clusterPairLess(a1, b1, a2, b2 *ClusterNode) bool {
	s1 := a1.leafSum() + b1.leafSum()
	s2 := a2.leafSum() + b2.leafSum()
	if s1 != s2 {
		return s1 < s2
	}
	x1, y1 := a1.minLeaf(), b1.minLeaf()
	if y1 < x1 {
		x1, y1 = y1, x1
	}
	x2, y2 := a2.minLeaf(), b2.minLeaf()
	if y2 < x2 {
		x2, y2 = y2, x2
	}
	if x1 != x2 {
		return x1 < x2
	}
	return y1 < y2
}

// quasiDiagonalOrder expands the tree from the root, visiting the child
// merged at the smaller distance first. Ties keep the child holding the
// lower asset index first.
func (hrp *HRPOptimizer) quasiDiagonalOrder(node *ClusterNode) []int {
	if node == nil {
		return nil
	}
	if node.IsLeaf() {
		return []int{node.Leaves[0]}
	}

	first, second := node.Left, node.Right
	if second.Distance < first.Distance-hrp.opts.TieTolerance {
		first, second = second, first
	}

	out := make([]int, 0, len(node.Leaves))
	out = append(out, hrp.quasiDiagonalOrder(first)...)
	out = append(out, hrp.quasiDiagonalOrder(second)...)
	return out
}

// recursiveBisectionAllocate splits order at its midpoint (left takes the
// ceiling half) and scales each half by its share of inverse cluster
// variance, recursing until every cluster is a single asset.
func (hrp *HRPOptimizer) recursiveBisectionAllocate(weights []float64, cov [][]float64, order []int) {
	if len(order) <= 1 {
		return
	}
	split := (len(order) + 1) / 2
	left := order[:split]
	right := order[split:]

	vLeft := clusterVariance(cov, left)
	vRight := clusterVariance(cov, right)

	alpha := 0.5
	if vLeft+vRight > 0 {
		alpha = 1.0 - vLeft/(vLeft+vRight)
	}
	alpha = math.Max(0.0, math.Min(1.0, alpha))

	for _, idx := range left {
		weights[idx] *= alpha
	}
	for _, idx := range right {
		weights[idx] *= 1.0 - alpha
	}

	hrp.recursiveBisectionAllocate(weights, cov, left)
	hrp.recursiveBisectionAllocate(weights, cov, right)
}

// clusterVariance is the variance of the inverse-variance portfolio of idxs.
func clusterVariance(cov [][]float64, idxs []int) float64 {
	if len(idxs) == 0 {
		return 0.0
	}
	if len(idxs) == 1 {
		return math.Max(cov[idxs[0]][idxs[0]], 0.0)
	}

	variances := make([]float64, len(idxs))
	for k, i := range idxs {
		variances[k] = cov[i][i]
	}
	ivp := formulas.InverseVarianceWeights(variances)

	return math.Max(formulas.PortfolioVariance(cov, idxs, ivp), 0.0)
}

// usableColumns drops every period in which any asset has a non-finite
// return and returns the remaining columns in asset order.
func usableColumns(returns ReturnsMatrix) ([][]float64, int) {
	periods := returns.Periods()
	keep := make([]int, 0, periods)
	for t := 0; t < periods; t++ {
		ok := true
		for _, asset := range returns.Assets {
			if !formulas.IsFinite(returns.Series[asset][t]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, t)
		}
	}

	columns := make([][]float64, len(returns.Assets))
	for j, asset := range returns.Assets {
		src := returns.Series[asset]
		col := make([]float64, len(keep))
		for k, t := range keep {
			col[k] = src[t]
		}
		columns[j] = col
	}
	return columns, len(keep)
}

func singleAssetAllocation(asset string, linkage Linkage, periods int) *Allocation {
	return &Allocation{
		Weights:  WeightVector{asset: 1.0},
		Order:    []string{asset},
		Excluded: []string{},
		Assets:   []string{asset},
		Tree:     &ClusterNode{ID: 0, Leaves: []int{0}},
		Linkage:  linkage,
		Periods:  periods,
	}
}
