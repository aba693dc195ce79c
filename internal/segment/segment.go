// Package segment binds cluster indices to human-readable segment names and
// summarizes the standardized features of each segment.
package segment

import (
	"fmt"
	"strings"

	"github.com/hyperjump/custseg/internal/models"
)

// NameTable maps a cluster index to its segment name. It is configuration, not derived from data.
type NameTable []string

// Validate checks that the table names exactly k clusters with unique, non-empty names.
func (t NameTable) Validate(k int) error {
	if len(t) != k {
		return fmt.Errorf("%w: name table has %d names for %d clusters", models.ErrConfigurationMismatch, len(t), k)
	}
	seen := make(map[string]int, len(t))
	for i, name := range t {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: cluster %d has an empty name", models.ErrConfigurationMismatch, i)
		}
		if prev, dup := seen[name]; dup {
			return fmt.Errorf("%w: clusters %d and %d share the name %q", models.ErrConfigurationMismatch, prev, i, name)
		}
		seen[name] = i
	}
	return nil
}

// Name returns the segment name of a cluster index.
func (t NameTable) Name(cluster int) (string, error) {
	if cluster < 0 || cluster >= len(t) {
		return "", fmt.Errorf("%w: cluster %d has no name (table has %d names)", models.ErrConfigurationMismatch, cluster, len(t))
	}
	return t[cluster], nil
}

// Label attaches a cluster index and segment name to every standardized row.
// labels must be aligned with rows. A cluster index outside the table is ErrConfigurationMismatch.
func Label(rows []models.StandardizedFeatures, labels []int, names NameTable) ([]models.LabeledCustomer, error) {
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("%w: %d rows but %d cluster labels", models.ErrInvalidInput, len(rows), len(labels))
	}
	out := make([]models.LabeledCustomer, len(rows))
	for i, row := range rows {
		name, err := names.Name(labels[i])
		if err != nil {
			return nil, fmt.Errorf("customer %s: %w", row.CustomerID, err)
		}
		out[i] = models.LabeledCustomer{
			CustomerID: row.CustomerID,
			Features:   append([]float64(nil), row.Values...),
			Cluster:    labels[i],
			Segment:    name,
		}
	}
	return out, nil
}

// Summarize returns the column-wise mean of the standardized features of every segment
// that occurs in labeled, ordered by cluster index. Segments without members are omitted.
func Summarize(labeled []models.LabeledCustomer) []models.SegmentSummary {
	byCluster := make(map[int]*models.SegmentSummary)
	maxCluster := -1
	for _, c := range labeled {
		s, ok := byCluster[c.Cluster]
		if !ok {
			s = &models.SegmentSummary{
				Segment: c.Segment,
				Cluster: c.Cluster,
				Means:   make([]float64, len(c.Features)),
			}
			byCluster[c.Cluster] = s
			if c.Cluster > maxCluster {
				maxCluster = c.Cluster
			}
		}
		s.Customers++
		for j, v := range c.Features {
			s.Means[j] += v
		}
	}

	out := make([]models.SegmentSummary, 0, len(byCluster))
	for cluster := 0; cluster <= maxCluster; cluster++ {
		s, ok := byCluster[cluster]
		if !ok {
			continue
		}
		for j := range s.Means {
			s.Means[j] /= float64(s.Customers)
		}
		out = append(out, *s)
	}
	return out
}
