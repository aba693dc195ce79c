package features

import (
	"fmt"

	"github.com/hyperjump/custseg/internal/models"
)

// FillPolicy decides how missing feature values become numbers before scaling.
type FillPolicy string

const (
	// FillZero replaces every missing value with 0.
	FillZero FillPolicy = "zero"
	// FillMean replaces missing values with the mean of the customers that have the value.
	// A column with no values at all is filled with 0.
	FillMean FillPolicy = "mean"
)

// ParseFillPolicy validates a configured policy name.
func ParseFillPolicy(s string) (FillPolicy, error) {
	switch p := FillPolicy(s); p {
	case FillZero, FillMean:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown fill policy %q (use zero or mean)", models.ErrConfigurationMismatch, s)
	}
}

// Fill returns new rows in which every missing measure is replaced according to policy.
// The input rows are not modified.
func Fill(rows []models.CustomerFeatures, policy FillPolicy) ([]models.CustomerFeatures, error) {
	if _, err := ParseFillPolicy(string(policy)); err != nil {
		return nil, err
	}

	fills := make([]float64, models.NumFeatures)
	if policy == FillMean {
		sums := make([]float64, models.NumFeatures)
		counts := make([]int, models.NumFeatures)
		for _, row := range rows {
			for j, m := range row.Measures() {
				if m.Valid {
					sums[j] += m.Value
					counts[j]++
				}
			}
		}
		for j := range fills {
			if counts[j] > 0 {
				fills[j] = sums[j] / float64(counts[j])
			}
		}
	}

	out := make([]models.CustomerFeatures, len(rows))
	for i, row := range rows {
		ms := row.Measures()
		for j := range ms {
			if !ms[j].Valid {
				ms[j] = models.Present(fills[j])
			}
		}
		out[i] = row.WithMeasures(ms)
	}
	return out, nil
}
