package domain

import "strings"

// ClusterIDPrefix prefixes every cluster identifier.
const ClusterIDPrefix = "cl_"

// ClusteringAlgorithm selects the density clustering variant.
type ClusteringAlgorithm string

// Available clustering algorithms.
const (
	// ClusteringDBSCAN is fixed-radius density clustering (eps, min_pts).
	ClusteringDBSCAN ClusteringAlgorithm = "dbscan"

	// ClusteringHDBSCAN is hierarchical density clustering
	// (min_cluster_size) without a fixed radius.
	ClusteringHDBSCAN ClusteringAlgorithm = "hdbscan"
)

// IsValid returns true if the algorithm is recognised.
func (a ClusteringAlgorithm) IsValid() bool {
	return a == ClusteringDBSCAN || a == ClusteringHDBSCAN
}

// String returns the string representation.
func (a ClusteringAlgorithm) String() string {
	return string(a)
}

// Cluster is a group of semantically similar reviews found in one run.
// Clusters are not persisted; their ID is stable across runs given identical
// membership and vectors.
type Cluster struct {
	// ID is "cl_" plus the first 12 hex chars of sha256(json(Centroid)).
	ID string

	// Centroid is the member mean rounded to 6 decimal places.
	Centroid []float64

	// MemberIdx are indices into the canonical review slice, ascending.
	MemberIdx []int

	// MemberIDs are the review IDs in MemberIdx order.
	MemberIDs []string

	// Singleton marks a noise point promoted to its own cluster.
	Singleton bool
}

// Size returns the number of members.
func (c Cluster) Size() int {
	return len(c.MemberIdx)
}

// TopicKey returns the cluster ID without its prefix.
func (c Cluster) TopicKey() string {
	return TopicKeyFor(c.ID)
}

// TopicKeyFor strips the cluster prefix from a cluster ID.
func TopicKeyFor(clusterID string) string {
	return strings.TrimPrefix(clusterID, ClusterIDPrefix)
}
