package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/custseg/internal/models"
)

func sampleRun() *models.Run {
	return &models.Run{
		Source:      "bank.csv",
		K:           2,
		Seed:        42,
		Inertia:     3.25,
		Iterations:  4,
		Converged:   true,
		Diagnostics: []string{"num_loans: constant column"},
		Customers: []models.LabeledCustomer{
			{CustomerID: "C2", Features: []float64{1, -0.5}, Cluster: 1, Segment: "Large Savers"},
			{CustomerID: "C1", Features: []float64{-1, 0.5}, Cluster: 0, Segment: "Small Savers"},
		},
		Segments: []models.SegmentSummary{
			{Segment: "Small Savers", Cluster: 0, Customers: 1, Means: []float64{-1, 0.5}},
			{Segment: "Large Savers", Cluster: 1, Customers: 1, Means: []float64{1, -0.5}},
		},
		Elbow: []models.InertiaPoint{
			{K: 1, Inertia: 10, Iterations: 1},
			{K: 2, Inertia: 3.25, Iterations: 4},
		},
	}
}

func TestSQLiteStorage_SaveAndGet(t *testing.T) {
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	run := sampleRun()
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if run.ID == "" {
		t.Fatal("ID should be assigned")
	}
	if run.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if run.CustomerCount != 2 {
		t.Errorf("CustomerCount = %d, want 2", run.CustomerCount)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != "bank.csv" || got.K != 2 || got.Seed != 42 || !got.Converged || got.Inertia != 3.25 {
		t.Errorf("unexpected header: %+v", got)
	}
	if len(got.Customers) != 2 || got.Customers[0].CustomerID != "C2" || got.Customers[1].Segment != "Small Savers" {
		t.Errorf("customers not stored in order: %+v", got.Customers)
	}
	if got.Customers[1].Features[1] != 0.5 {
		t.Errorf("features = %v", got.Customers[1].Features)
	}
	if len(got.Segments) != 2 || got.Segments[1].Means[0] != 1 {
		t.Errorf("segments = %+v", got.Segments)
	}
	if len(got.Elbow) != 2 || got.Elbow[0].K != 1 || got.Elbow[1].Inertia != 3.25 {
		t.Errorf("elbow = %+v", got.Elbow)
	}
	if len(got.Diagnostics) != 1 {
		t.Errorf("diagnostics = %v", got.Diagnostics)
	}
}

func TestSQLiteStorage_ListCountDelete(t *testing.T) {
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	n, err := store.CountRuns(ctx)
	if err != nil || n != 0 {
		t.Errorf("CountRuns: %v, %d", err, n)
	}

	first, second := sampleRun(), sampleRun()
	second.ID = "fixed-id"
	if err := store.SaveRun(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveRun(ctx, second); err != nil {
		t.Fatal(err)
	}

	list, err := store.ListRuns(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(list))
	}
	if list[0].ID != "fixed-id" {
		t.Errorf("expected newest run first, got %s", list[0].ID)
	}
	if list[0].Customers != nil || list[0].CustomerCount != 2 {
		t.Errorf("list should return headers only: %+v", list[0])
	}

	page, err := store.ListRuns(ctx, 1, 10)
	if err != nil || len(page) != 1 {
		t.Errorf("offset page: %v, %d runs", err, len(page))
	}

	if err := store.DeleteRun(ctx, "fixed-id"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetRun(ctx, "fixed-id"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound after delete, got %v", err)
	}
	if err := store.DeleteRun(ctx, "fixed-id"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("deleting twice: expected ErrRunNotFound, got %v", err)
	}
	n, _ = store.CountRuns(ctx)
	if n != 1 {
		t.Errorf("expected 1 run, got %d", n)
	}

	size, err := store.SizeBytes()
	if err != nil || size == 0 {
		t.Errorf("SizeBytes: %v, %d", err, size)
	}
}

func TestSQLiteStorage_DuplicateIDRollsBack(t *testing.T) {
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	run := sampleRun()
	run.ID = "dup"
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	again := sampleRun()
	again.ID = "dup"
	if err := store.SaveRun(ctx, again); err == nil {
		t.Fatal("expected primary key violation")
	}
	got, err := store.GetRun(ctx, "dup")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Customers) != 2 {
		t.Errorf("failed save must not add rows, got %d customers", len(got.Customers))
	}
}
