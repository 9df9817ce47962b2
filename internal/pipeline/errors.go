package pipeline

import "fmt"

// CollisionError means a row's output path is already taken, either by an
// earlier row of the same run or by a directory on disk.
type CollisionError struct {
	BaseName string
	Path     string
	// Row is the earlier row holding the path, or 0 when the path exists on disk.
	Row int
}

func (e *CollisionError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("output %q collides with row %d (%s)", e.BaseName, e.Row, e.Path)
	}
	return fmt.Sprintf("output %q already exists at %s\nHint: remove it or enable output.overwrite", e.BaseName, e.Path)
}

// StepError wraps a row failure with the step that was running.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error { return e.Err }
