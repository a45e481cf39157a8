package optimization

import (
	"fmt"
	"math"
	"strings"
)

// Linkage selects how the distance between two clusters is derived when
// the agglomerative clustering merges them.
type Linkage string

const (
	// LinkageWard minimizes the increase in within-cluster variance.
	LinkageWard Linkage = "ward"
	// LinkageSingle uses the closest pair of members.
	LinkageSingle Linkage = "single"
	// LinkageComplete uses the farthest pair of members.
	LinkageComplete Linkage = "complete"
	// LinkageAverage uses the mean pairwise member distance (UPGMA).
	LinkageAverage Linkage = "average"
)

// DefaultLinkage is used when no linkage is configured.
const DefaultLinkage = LinkageWard

// Linkages lists the supported linkage rules.
func Linkages() []Linkage {
	return []Linkage{LinkageWard, LinkageSingle, LinkageComplete, LinkageAverage}
}

// ParseLinkage parses a linkage name. An empty name yields DefaultLinkage.
func ParseLinkage(name string) (Linkage, error) {
	switch Linkage(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return DefaultLinkage, nil
	case LinkageWard:
		return LinkageWard, nil
	case LinkageSingle:
		return LinkageSingle, nil
	case LinkageComplete:
		return LinkageComplete, nil
	case LinkageAverage:
		return LinkageAverage, nil
	default:
		return "", fmt.Errorf("unknown linkage %q (expected one of ward, single, complete, average)", name)
	}
}

// update returns the Lance-Williams distance between cluster k and the
// cluster formed by merging i and j.
//
//	dki, dkj: distances from k to i and j
//	dij:      distance between i and j at merge time
//	ni, nj, nk: cluster sizes
func (l Linkage) update(dki, dkj, dij float64, ni, nj, nk int) float64 {
	switch l {
	case LinkageSingle:
		return math.Min(dki, dkj)
	case LinkageComplete:
		return math.Max(dki, dkj)
	case LinkageAverage:
		fi, fj := float64(ni), float64(nj)
		return (fi*dki + fj*dkj) / (fi + fj)
	default:
		fi, fj, fk := float64(ni), float64(nj), float64(nk)
		sq := ((fi+fk)*dki*dki + (fj+fk)*dkj*dkj - fk*dij*dij) / (fi + fj + fk)
		return math.Sqrt(math.Max(sq, 0))
	}
}
