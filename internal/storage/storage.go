// Package storage persists segmentation runs.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/custseg/internal/models"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// Storage defines run persistence operations.
type Storage interface {
	// SaveRun stores a run with its customers, segments, and elbow series in one
	// transaction. An empty ID is replaced with a new one.
	SaveRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	// ListRuns returns run headers, newest first.
	ListRuns(ctx context.Context, offset, limit int) ([]*models.Run, error)
	DeleteRun(ctx context.Context, id string) error
	CountRuns(ctx context.Context) (int64, error)

	Close() error
}
