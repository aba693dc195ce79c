package models

import (
	"encoding/json"
	"strconv"
)

// Measure is a numeric feature value that may be absent.
// An absent value means "no such record", which is distinct from zero.
type Measure struct {
	Value float64
	Valid bool
}

// Present returns a valid measure holding v.
func Present(v float64) Measure {
	return Measure{Value: v, Valid: true}
}

// Missing returns an absent measure.
func Missing() Measure {
	return Measure{}
}

// String renders the value, or "missing" when absent.
func (m Measure) String() string {
	if !m.Valid {
		return "missing"
	}
	return strconv.FormatFloat(m.Value, 'g', -1, 64)
}

// MarshalJSON encodes an absent measure as null.
func (m Measure) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON decodes null as an absent measure.
func (m *Measure) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Missing()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Present(v)
	return nil
}

// FeatureColumns is the fixed column order shared by every stage after aggregation.
var FeatureColumns = []string{
	"num_accounts",
	"avg_balance",
	"num_transactions",
	"avg_transactions",
	"num_loans",
	"avg_loans",
}

// NumFeatures is the width of a feature vector.
const NumFeatures = 6

// CustomerFeatures is the behavioral profile of one customer.
type CustomerFeatures struct {
	CustomerID      string  `json:"customer_id"`
	NumAccounts     Measure `json:"num_accounts"`
	AvgBalance      Measure `json:"avg_balance"`
	NumTransactions Measure `json:"num_transactions"`
	AvgTransactions Measure `json:"avg_transactions"`
	NumLoans        Measure `json:"num_loans"`
	AvgLoans        Measure `json:"avg_loans"`
}

// Measures returns the feature values in FeatureColumns order.
func (f CustomerFeatures) Measures() []Measure {
	return []Measure{
		f.NumAccounts,
		f.AvgBalance,
		f.NumTransactions,
		f.AvgTransactions,
		f.NumLoans,
		f.AvgLoans,
	}
}

// WithMeasures returns a copy of f whose values are replaced by ms, in FeatureColumns order.
func (f CustomerFeatures) WithMeasures(ms []Measure) CustomerFeatures {
	out := CustomerFeatures{CustomerID: f.CustomerID}
	out.NumAccounts = ms[0]
	out.AvgBalance = ms[1]
	out.NumTransactions = ms[2]
	out.AvgTransactions = ms[3]
	out.NumLoans = ms[4]
	out.AvgLoans = ms[5]
	return out
}

// StandardizedFeatures is a customer's feature vector after scaling, in FeatureColumns order.
type StandardizedFeatures struct {
	CustomerID string    `json:"customer_id"`
	Values     []float64 `json:"values"`
}
