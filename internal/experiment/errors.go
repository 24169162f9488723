package experiment

import "fmt"

type Stage string

const (
	StageSetup       Stage = "setup"
	StageIntegration Stage = "integration"
	StageRendering   Stage = "rendering"
	StageExport      Stage = "export"
)

// StageError reports which part of a run failed. Trial names the
// sensitivity trial for integration failures.
type StageError struct {
	Stage Stage
	Trial string
	Err   error
}

func (e *StageError) Error() string {
	if e.Trial != "" {
		return fmt.Sprintf("%s (%s): %v", e.Stage, e.Trial, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Wrap wraps err in a StageError, or returns nil for a nil err.
func Wrap(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
