// Package scaler standardizes feature columns to zero mean and unit variance.
package scaler

import (
	"fmt"

	"github.com/hyperjump/custseg/internal/models"
	"github.com/hyperjump/custseg/pkg/utils"
)

// Params are the fitted per-column scale parameters, in models.FeatureColumns order.
// They can be reapplied to new data with Transform.
type Params struct {
	Means      []float64 `json:"means"`
	StdDevs    []float64 `json:"std_devs"`
	Degenerate []int     `json:"degenerate,omitempty"` // columns with zero variance
}

// Fit computes the population mean and standard deviation of every feature column.
// Every cell must be present; a missing value or an empty batch is ErrInvalidInput.
func Fit(rows []models.CustomerFeatures) (*Params, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no customers to standardize", models.ErrInvalidInput)
	}
	columns := make([][]float64, models.NumFeatures)
	for j := range columns {
		columns[j] = make([]float64, len(rows))
	}
	for i, row := range rows {
		for j, m := range row.Measures() {
			if !m.Valid {
				return nil, fmt.Errorf("%w: customer %s has a missing %s value; fill it before scaling",
					models.ErrInvalidInput, row.CustomerID, models.FeatureColumns[j])
			}
			columns[j][i] = m.Value
		}
	}

	p := &Params{
		Means:   make([]float64, models.NumFeatures),
		StdDevs: make([]float64, models.NumFeatures),
	}
	for j, col := range columns {
		p.Means[j], p.StdDevs[j] = utils.MeanStd(col)
		if p.StdDevs[j] == 0 {
			p.Degenerate = append(p.Degenerate, j)
		}
	}
	return p, nil
}

// Transform applies (x - mean) / std to every row. Zero-variance columns become 0.
// Row order and customer IDs are preserved.
func (p *Params) Transform(rows []models.CustomerFeatures) ([]models.StandardizedFeatures, error) {
	out := make([]models.StandardizedFeatures, len(rows))
	for i, row := range rows {
		values := make([]float64, models.NumFeatures)
		for j, m := range row.Measures() {
			if !m.Valid {
				return nil, fmt.Errorf("%w: customer %s has a missing %s value",
					models.ErrInvalidInput, row.CustomerID, models.FeatureColumns[j])
			}
			if p.StdDevs[j] == 0 {
				continue
			}
			values[j] = (m.Value - p.Means[j]) / p.StdDevs[j]
		}
		out[i] = models.StandardizedFeatures{CustomerID: row.CustomerID, Values: values}
	}
	return out, nil
}

// Diagnostics reports every zero-variance column as a *models.DegenerateColumnError.
func (p *Params) Diagnostics() []error {
	var diags []error
	for _, j := range p.Degenerate {
		diags = append(diags, &models.DegenerateColumnError{Column: models.FeatureColumns[j], Value: p.Means[j]})
	}
	return diags
}

// FitTransform fits the parameters on rows and transforms the same rows.
// The returned diagnostics are not fatal.
func FitTransform(rows []models.CustomerFeatures) ([]models.StandardizedFeatures, *Params, []error, error) {
	p, err := Fit(rows)
	if err != nil {
		return nil, nil, nil, err
	}
	out, err := p.Transform(rows)
	if err != nil {
		return nil, nil, nil, err
	}
	return out, p, p.Diagnostics(), nil
}
