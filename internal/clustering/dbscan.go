package clustering

import (
	"cmp"
	"slices"
)

const (
	unvisited = -99
	noise     = -1
)

// dbscan labels every point with a cluster number or noise.
// Neighbour lists exclude the point itself and are sorted by rank so that
// expansion order, and therefore border assignment, is deterministic.
func dbscan(dist [][]float64, rank []int, eps float64, minPts int) []int {
	n := len(dist)
	neigh := make([][]int, n)
	for i := 0; i < n; i++ {
		var nb []int
		for j := 0; j < n; j++ {
			if i != j && dist[i][j] <= eps {
				nb = append(nb, j)
			}
		}
		slices.SortFunc(nb, func(a, b int) int { return cmp.Compare(rank[a], rank[b]) })
		neigh[i] = nb
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	cid := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		if len(neigh[i])+1 < minPts {
			labels[i] = noise
			continue
		}

		current := cid
		cid++
		labels[i] = current

		queue := append([]int{i}, neigh[i]...)
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]

			if labels[q] == noise {
				// Border point reached from a core point.
				labels[q] = current
			}
			if labels[q] != unvisited {
				continue
			}
			labels[q] = current

			if len(neigh[q])+1 >= minPts {
				for _, j := range neigh[q] {
					if labels[j] == unvisited || labels[j] == noise {
						queue = append(queue, j)
					}
				}
			}
		}
	}

	for i, lab := range labels {
		if lab == unvisited {
			labels[i] = noise
		}
	}
	return labels
}
