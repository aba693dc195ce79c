// Package kmeans implements deterministic Lloyd's k-means clustering over
// standardized customer feature vectors.
//
// All randomness comes from a math/rand source seeded from Options.Seed, so
// identical input, k, and seed always produce identical assignments. Ties
// between equidistant centroids go to the lower centroid index, and a cluster
// that loses every member is re-seeded from the point farthest from its own
// centroid, so no cluster is empty in the final assignment.
//
// Elbow runs the algorithm for a range of k values to report inertia per k.
package kmeans
