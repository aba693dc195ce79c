package models

import "time"

// Run is a persisted segmentation run. List queries leave Customers, Segments,
// and Elbow empty; CustomerCount is always set.
type Run struct {
	ID            string            `json:"id"`
	Source        string            `json:"source"`
	K             int               `json:"k"`
	Seed          int64             `json:"seed"`
	Inertia       float64           `json:"inertia"`
	Iterations    int               `json:"iterations"`
	Converged     bool              `json:"converged"`
	CustomerCount int               `json:"customer_count"`
	Diagnostics   []string          `json:"diagnostics,omitempty"`
	Customers     []LabeledCustomer `json:"customers,omitempty"`
	Segments      []SegmentSummary  `json:"segments,omitempty"`
	Elbow         []InertiaPoint    `json:"elbow,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
