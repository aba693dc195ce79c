package models

// LabeledCustomer is a standardized feature vector with its cluster index and segment name.
type LabeledCustomer struct {
	CustomerID string    `json:"customer_id"`
	Features   []float64 `json:"features"`
	Cluster    int       `json:"cluster"`
	Segment    string    `json:"segment"`
}

// SegmentSummary is the column-wise mean of standardized features for one segment.
type SegmentSummary struct {
	Segment   string    `json:"segment"`
	Cluster   int       `json:"cluster"`
	Customers int       `json:"customers"`
	Means     []float64 `json:"means"`
}

// InertiaPoint is the total within-cluster sum of squares for one candidate k.
type InertiaPoint struct {
	K          int     `json:"k"`
	Inertia    float64 `json:"inertia"`
	Iterations int     `json:"iterations"`
}
