package optimization

import (
	"fmt"
	"sort"
	"time"
)

// ReturnsMatrix holds periodic returns for an ordered asset universe.
// Series[asset][t] is the return of asset over period t. The position of an
// asset in Assets is its canonical index, used for deterministic tie-breaks.
type ReturnsMatrix struct {
	Dates  []time.Time
	Assets []string
	Series map[string][]float64
}

// NewReturnsMatrix builds and validates a returns matrix.
func NewReturnsMatrix(dates []time.Time, assets []string, series map[string][]float64) (ReturnsMatrix, error) {
	rm := ReturnsMatrix{Dates: dates, Assets: assets, Series: series}
	if err := rm.Validate(); err != nil {
		return ReturnsMatrix{}, err
	}
	return rm, nil
}

// Validate checks the structural invariants: a non-empty universe of unique
// ids, and a rectangular set of series aligned with Dates when present.
func (rm ReturnsMatrix) Validate() error {
	if len(rm.Assets) == 0 {
		return fmt.Errorf("%w: empty asset universe", ErrInvalidReturns)
	}

	seen := make(map[string]struct{}, len(rm.Assets))
	periods := -1
	for _, asset := range rm.Assets {
		if asset == "" {
			return fmt.Errorf("%w: empty asset identifier", ErrInvalidReturns)
		}
		if _, dup := seen[asset]; dup {
			return fmt.Errorf("%w: duplicate asset %q", ErrInvalidReturns, asset)
		}
		seen[asset] = struct{}{}

		series, ok := rm.Series[asset]
		if !ok {
			return fmt.Errorf("%w: missing series for %q", ErrInvalidReturns, asset)
		}
		if periods == -1 {
			periods = len(series)
		} else if len(series) != periods {
			return fmt.Errorf("%w: series for %q has %d periods, expected %d", ErrInvalidReturns, asset, len(series), periods)
		}
	}

	if len(rm.Dates) > 0 && len(rm.Dates) != periods {
		return fmt.Errorf("%w: %d dates but %d periods", ErrInvalidReturns, len(rm.Dates), periods)
	}
	return nil
}

// Periods returns the number of rows in the matrix.
func (rm ReturnsMatrix) Periods() int {
	if len(rm.Assets) == 0 {
		return 0
	}
	return len(rm.Series[rm.Assets[0]])
}

// Column returns the series for asset, or nil.
func (rm ReturnsMatrix) Column(asset string) []float64 {
	return rm.Series[asset]
}

// WeightVector maps asset id to a non-negative capital weight.
type WeightVector map[string]float64

// AssetWeight is a single entry of a WeightVector.
type AssetWeight struct {
	Asset  string  `json:"asset"`
	Weight float64 `json:"weight"`
}

// Sum returns the total weight.
func (wv WeightVector) Sum() float64 {
	sum := 0.0
	for _, w := range wv {
		sum += w
	}
	return sum
}

// Get returns the weight for asset, 0 when absent.
func (wv WeightVector) Get(asset string) float64 {
	return wv[asset]
}

// Sorted returns the weights by descending weight, then ascending id.
func (wv WeightVector) Sorted() []AssetWeight {
	out := make([]AssetWeight, 0, len(wv))
	for asset, w := range wv {
		out = append(out, AssetWeight{Asset: asset, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Asset < out[j].Asset
	})
	return out
}

// ClusterNode is a node of the dendrogram built by agglomerative clustering.
// Leaves carry a single asset index and a zero Distance.
type ClusterNode struct {
	ID       int          `json:"id"`
	Left     *ClusterNode `json:"left,omitempty"`
	Right    *ClusterNode `json:"right,omitempty"`
	Distance float64      `json:"distance"`
	Leaves   []int        `json:"leaves"`
}

// IsLeaf reports whether the node is a single asset.
func (n *ClusterNode) IsLeaf() bool {
	return n.Left == nil && n.Right == nil
}

func (n *ClusterNode) minLeaf() int {
	m := n.Leaves[0]
	for _, l := range n.Leaves[1:] {
		if l < m {
			m = l
		}
	}
	return m
}

func (n *ClusterNode) leafSum() int {
	s := 0
	for _, l := range n.Leaves {
		s += l
	}
	return s
}

// Allocation is the full result of an HRP run. Indices in Tree and the
// matrices refer to Assets, which holds only the clustered (non-zero
// variance) assets in input order.
type Allocation struct {
	Weights    WeightVector `json:"weights"`
	Order      []string     `json:"order"`
	Excluded   []string     `json:"excluded"`
	Assets     []string     `json:"assets"`
	Tree       *ClusterNode `json:"tree,omitempty"`
	Covariance [][]float64  `json:"covariance,omitempty"`
	Distance   [][]float64  `json:"distance,omitempty"`
	Linkage    Linkage      `json:"linkage"`
	Periods    int          `json:"periods"`
}

// IncludeMissing gives every asset of universe that has no weight an
// explicit 0 and lists it in Excluded. Assets dropped before allocation
// (no price history, empty columns) stay visible in the result this way.
func (a *Allocation) IncludeMissing(universe ...string) {
	if a.Weights == nil {
		a.Weights = make(WeightVector, len(universe))
	}
	for _, asset := range universe {
		if _, ok := a.Weights[asset]; ok {
			continue
		}
		a.Weights[asset] = 0
		a.Excluded = append(a.Excluded, asset)
	}
}
