package pipeline

import (
	"errors"
	"fmt"

	"github.com/hyperjump/custseg/internal/models"
)

// Stage names a pipeline step.
type Stage string

const (
	StageConfig      Stage = "config"
	StageAggregate   Stage = "aggregate"
	StageFill        Stage = "fill"
	StageStandardize Stage = "standardize"
	StageCluster     Stage = "cluster"
	StageElbow       Stage = "elbow"
	StageLabel       Stage = "label"
)

// StageError identifies the stage that failed. The underlying error can be
// matched against the models error taxonomy with errors.Is.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Condition returns the taxonomy name of err: InvalidInput, ConfigurationMismatch,
// NumericDegeneracy, or an empty string when err is none of them.
func Condition(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return "InvalidInput"
	case errors.Is(err, models.ErrConfigurationMismatch):
		return "ConfigurationMismatch"
	case errors.Is(err, models.ErrNumericDegeneracy):
		return "NumericDegeneracy"
	default:
		return ""
	}
}
