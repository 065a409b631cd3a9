package clustering

import (
	"fmt"

	"github.com/humilityai/hdbscan"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

// cosineDistance is Distance clamped at zero; rounding can push
// identical unit vectors a hair below it.
func cosineDistance(a, b []float64) float64 {
	return max(0, Distance(a, b))
}

// hierarchical labels points with the HDBSCAN library. Points are handed
// over in (BodySHA, ID) order so the library sees the same input whatever
// order the caller used, and each point keeps the first cluster that
// lists it. Fewer points than minClusterSize is all noise.
func hierarchical(items []Item, rank []int, minClusterSize int) ([]int, error) {
	n := len(items)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = noise
	}
	if n < minClusterSize || n < 2 {
		return labels, nil
	}

	byRank := make([]int, n)
	for i, r := range rank {
		byRank[r] = i
	}
	data := make([][]float64, n)
	for r, i := range byRank {
		data[r] = items[i].Vector
	}

	c, err := hdbscan.NewClustering(data, minClusterSize)
	if err != nil {
		return nil, fmt.Errorf("%w: hdbscan: %v", domain.ErrPrecondition, err)
	}
	if err := c.Run(cosineDistance, hdbscan.VarianceScore, true); err != nil {
		return nil, fmt.Errorf("hdbscan: %w", err)
	}

	for label, cl := range c.Clusters {
		for _, p := range cl.Points {
			if p < 0 || p >= n {
				continue
			}
			if i := byRank[p]; labels[i] == noise {
				labels[i] = label
			}
		}
	}
	return labels, nil
}
