package segment

import (
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/custseg/internal/models"
)

var names = NameTable{"Steady Customers", "Wealthy Inactives", "Most-Active Customers", "Loan-Heavy Customers"}

func TestNameTable_Validate(t *testing.T) {
	tests := []struct {
		name    string
		table   NameTable
		k       int
		wantErr bool
	}{
		{"matching length", names, 4, false},
		{"too short", names[:3], 4, true},
		{"too long", names, 3, true},
		{"empty name", NameTable{"a", " "}, 2, true},
		{"duplicate", NameTable{"a", "b", "a"}, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate(tt.k)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, models.ErrConfigurationMismatch) {
				t.Errorf("expected ErrConfigurationMismatch, got %v", err)
			}
		})
	}
}

func rows(ids ...string) []models.StandardizedFeatures {
	out := make([]models.StandardizedFeatures, len(ids))
	for i, id := range ids {
		out[i] = models.StandardizedFeatures{CustomerID: id, Values: []float64{float64(i), -float64(i)}}
	}
	return out
}

func TestLabel(t *testing.T) {
	labeled, err := Label(rows("a", "b", "c"), []int{2, 0, 2}, names)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Most-Active Customers", "Steady Customers", "Most-Active Customers"}
	allowed := make(map[string]bool)
	for _, n := range names {
		allowed[n] = true
	}
	for i, c := range labeled {
		if c.Segment != want[i] {
			t.Errorf("row %d segment = %q, want %q", i, c.Segment, want[i])
		}
		if !allowed[c.Segment] {
			t.Errorf("segment %q not in name table", c.Segment)
		}
	}
	if labeled[1].CustomerID != "b" || labeled[1].Cluster != 0 {
		t.Errorf("unexpected row: %+v", labeled[1])
	}
}

func TestLabel_DoesNotAliasInput(t *testing.T) {
	in := rows("a")
	labeled, err := Label(in, []int{0}, names)
	if err != nil {
		t.Fatal(err)
	}
	labeled[0].Features[0] = 99
	if in[0].Values[0] == 99 {
		t.Error("labeled features share storage with the standardized input")
	}
}

func TestLabel_UnknownCluster(t *testing.T) {
	_, err := Label(rows("a", "b"), []int{0, 4}, names)
	if !errors.Is(err, models.ErrConfigurationMismatch) {
		t.Errorf("expected ErrConfigurationMismatch, got %v", err)
	}
	_, err = Label(rows("a"), []int{-1}, names)
	if !errors.Is(err, models.ErrConfigurationMismatch) {
		t.Errorf("negative cluster: expected ErrConfigurationMismatch, got %v", err)
	}
}

func TestLabel_MisalignedLabels(t *testing.T) {
	_, err := Label(rows("a", "b"), []int{0}, names)
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	labeled := []models.LabeledCustomer{
		{CustomerID: "a", Features: []float64{1, 2}, Cluster: 3, Segment: "Loan-Heavy Customers"},
		{CustomerID: "b", Features: []float64{3, 4}, Cluster: 3, Segment: "Loan-Heavy Customers"},
		{CustomerID: "c", Features: []float64{-1, 0}, Cluster: 1, Segment: "Wealthy Inactives"},
	}
	summary := Summarize(labeled)
	if len(summary) != 2 {
		t.Fatalf("expected 2 segments (absent ones omitted), got %d", len(summary))
	}
	if summary[0].Cluster != 1 || summary[1].Cluster != 3 {
		t.Errorf("summary not ordered by cluster: %+v", summary)
	}
	loan := summary[1]
	if loan.Segment != "Loan-Heavy Customers" || loan.Customers != 2 {
		t.Errorf("unexpected loan segment: %+v", loan)
	}
	if math.Abs(loan.Means[0]-2) > 1e-12 || math.Abs(loan.Means[1]-3) > 1e-12 {
		t.Errorf("loan means = %v, want [2 3]", loan.Means)
	}
	if summary[0].Means[0] != -1 || summary[0].Customers != 1 {
		t.Errorf("unexpected wealthy segment: %+v", summary[0])
	}
}

func TestSummarize_Empty(t *testing.T) {
	if got := Summarize(nil); len(got) != 0 {
		t.Errorf("expected empty summary, got %v", got)
	}
}
