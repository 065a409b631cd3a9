// Package clustering groups review embeddings into deterministic density
// clusters.
//
// Two algorithms are available: fixed-radius DBSCAN and HDBSCAN, which
// replaces eps with min_cluster_size. Both see points in (body_sha, id)
// order so that results never depend on input order, and both derive
// cluster IDs from the rounded centroid.
package clustering

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/floats"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

// clusterIDHexLen is the number of hash hex chars kept in a cluster ID.
const clusterIDHexLen = 12

// Item is one point to cluster.
type Item struct {
	ID      string
	BodySHA string
	Vector  []float64
}

// Config tunes the engine.
type Config struct {
	Algorithm      domain.ClusteringAlgorithm
	Eps            float64
	MinPts         int
	MinClusterSize int
	IncludeNoise   bool
}

// ConfigFromSettings maps pipeline settings onto an engine config.
func ConfigFromSettings(s domain.PipelineSettings) Config {
	return Config{
		Algorithm:      s.Algorithm,
		Eps:            s.Eps,
		MinPts:         s.MinPts,
		MinClusterSize: s.MinClusterSize,
		IncludeNoise:   s.IncludeNoise,
	}
}

// Validate checks the parameters for the selected algorithm.
func (c Config) Validate() error {
	switch c.Algorithm {
	case domain.ClusteringDBSCAN:
		if c.Eps <= 0 || c.Eps > 2 {
			return fmt.Errorf("%w: eps must be in (0, 2], got %g", domain.ErrInvalidInput, c.Eps)
		}
		if c.MinPts < 1 {
			return fmt.Errorf("%w: min_pts must be at least 1, got %d", domain.ErrInvalidInput, c.MinPts)
		}
	case domain.ClusteringHDBSCAN:
		if c.MinClusterSize < 2 {
			return fmt.Errorf("%w: min_cluster_size must be at least 2, got %d", domain.ErrInvalidInput, c.MinClusterSize)
		}
	default:
		return fmt.Errorf("%w: unknown clustering algorithm %q", domain.ErrInvalidInput, c.Algorithm)
	}
	return nil
}

// Result is the output of one clustering run.
type Result struct {
	// Clusters are sorted by ID.
	Clusters []domain.Cluster

	// Noise are indices of points that joined no cluster, ascending.
	// Populated even when noise is emitted as singletons.
	Noise []int
}

// Engine clusters items.
type Engine struct {
	cfg Config
}

// New creates an engine after validating cfg.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Run clusters items, which must be in canonical review order.
func (e *Engine) Run(items []Item) (*Result, error) {
	if len(items) == 0 {
		return &Result{}, nil
	}
	if err := checkDimensions(items); err != nil {
		return nil, err
	}

	order := neighbourOrder(items)

	var labels []int
	switch e.cfg.Algorithm {
	case domain.ClusteringHDBSCAN:
		var err error
		if labels, err = hierarchical(items, order, e.cfg.MinClusterSize); err != nil {
			return nil, err
		}
	default:
		labels = dbscan(distanceMatrix(items), order, e.cfg.Eps, e.cfg.MinPts)
	}

	return assemble(items, labels, e.cfg.IncludeNoise)
}

// checkDimensions rejects empty or ragged vectors.
func checkDimensions(items []Item) error {
	dim := len(items[0].Vector)
	if dim == 0 {
		return fmt.Errorf("%w: item %s has an empty vector", domain.ErrPrecondition, items[0].ID)
	}
	for _, it := range items[1:] {
		if len(it.Vector) != dim {
			return fmt.Errorf("%w: item %s has %d dimensions, expected %d",
				domain.ErrPrecondition, it.ID, len(it.Vector), dim)
		}
	}
	return nil
}

// Distance is the cosine distance between two L2-normalised vectors.
func Distance(a, b []float64) float64 {
	return 1 - floats.Dot(a, b)
}

func distanceMatrix(items []Item) [][]float64 {
	n := len(items)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := Distance(items[i].Vector, items[j].Vector)
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// neighbourOrder returns the rank of every item under (BodySHA, ID) order.
func neighbourOrder(items []Item) []int {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		if c := cmp.Compare(items[a].BodySHA, items[b].BodySHA); c != 0 {
			return c
		}
		return cmp.Compare(items[a].ID, items[b].ID)
	})
	rank := make([]int, len(items))
	for r, i := range idx {
		rank[i] = r
	}
	return rank
}

// Centroid returns the coordinate-wise mean of the member vectors,
// rounded to 6 decimal places.
func Centroid(items []Item, members []int) []float64 {
	c := make([]float64, len(items[members[0]].Vector))
	for _, m := range members {
		floats.Add(c, items[m].Vector)
	}
	floats.Scale(1/float64(len(members)), c)
	return domain.RoundVector(c)
}

// ClusterID derives the cluster identifier from a rounded centroid.
func ClusterID(centroid6 []float64) string {
	return domain.ClusterIDPrefix + VectorHash(centroid6)
}

// VectorHash returns the first 12 hex chars of sha256(json(vec)).
func VectorHash(vec []float64) string {
	raw, err := json.Marshal(vec)
	if err != nil {
		// Only NaN or Inf components fail to encode.
		raw = []byte(fmt.Sprint(vec))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:clusterIDHexLen]
}

// assemble turns per-point labels (-1 for noise) into sorted clusters.
func assemble(items []Item, labels []int, includeNoise bool) (*Result, error) {
	if len(labels) != len(items) {
		return nil, fmt.Errorf("%w: %d labels for %d items", domain.ErrPrecondition, len(labels), len(items))
	}

	groups := make(map[int][]int)
	var labelOrder []int
	var noise []int
	for i, lab := range labels {
		if lab < 0 {
			noise = append(noise, i)
			continue
		}
		if _, ok := groups[lab]; !ok {
			labelOrder = append(labelOrder, lab)
		}
		groups[lab] = append(groups[lab], i)
	}

	byID := make(map[string]*domain.Cluster)
	add := func(members []int, singleton bool) {
		centroid := Centroid(items, members)
		id := ClusterID(centroid)
		if existing, ok := byID[id]; ok {
			// Identical centroids collapse into one cluster.
			existing.MemberIdx = append(existing.MemberIdx, members...)
			slices.Sort(existing.MemberIdx)
			existing.Singleton = false
			return
		}
		byID[id] = &domain.Cluster{
			ID:        id,
			Centroid:  centroid,
			MemberIdx: slices.Clone(members),
			Singleton: singleton,
		}
	}

	for _, lab := range labelOrder {
		add(groups[lab], false)
	}
	if includeNoise {
		for _, i := range noise {
			add([]int{i}, true)
		}
	}

	clusters := make([]domain.Cluster, 0, len(byID))
	for _, c := range byID {
		c.MemberIDs = make([]string, len(c.MemberIdx))
		for k, m := range c.MemberIdx {
			c.MemberIDs[k] = items[m].ID
		}
		clusters = append(clusters, *c)
	}
	slices.SortFunc(clusters, func(a, b domain.Cluster) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return &Result{Clusters: clusters, Noise: noise}, nil
}
