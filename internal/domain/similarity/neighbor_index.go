package similarity

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

type neighbor struct {
	row      int
	distance float64
}

// neighborIndex is an exact brute-force k nearest neighbor search over the
// normalized matrix. Queries cost O(n*d).
type neighborIndex struct {
	k      int
	metric Metric
	points *mat.Dense
	norms  []float64
}

func newNeighborIndex(points *mat.Dense, k int, metric Metric) *neighborIndex {
	n, _ := points.Dims()
	return &neighborIndex{
		k:      k,
		metric: metric,
		points: points,
		norms:  rowNorms(n, points.RawRowView),
	}
}

// query returns up to k rows nearest to row, the row itself included,
// ordered by ascending distance with ties broken by row position.
func (idx *neighborIndex) query(row, k int) []neighbor {
	n, _ := idx.points.Dims()
	if k <= 0 {
		k = idx.k
	}
	if k > n {
		k = n
	}

	target := idx.points.RawRowView(row)
	all := make([]neighbor, n)
	for j := 0; j < n; j++ {
		all[j] = neighbor{
			row:      j,
			distance: distance(idx.metric, target, idx.points.RawRowView(j), idx.norms[row], idx.norms[j]),
		}
	}
	sort.SliceStable(all, func(a, b int) bool {
		return all[a].distance < all[b].distance
	})
	return all[:k]
}
