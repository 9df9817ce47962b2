package model

import (
	"fmt"
	"strings"
)

// FormatDetectionError is returned when a semantic model folder matches
// neither supported format. It is fatal for a whole run.
type FormatDetectionError struct {
	Dir string
}

func (e *FormatDetectionError) Error() string {
	return fmt.Sprintf("cannot detect semantic model format in %s\nHint: expected %s, or %s/%s with a %s/ folder",
		e.Dir, BIMFileName, DefinitionDir, ModelTMDLFile, TablesDir)
}

// ParameterMismatchError lists configured parameters the template does not declare.
type ParameterMismatchError struct {
	Missing   []string
	Available []string
}

func (e *ParameterMismatchError) Error() string {
	available := "none"
	if len(e.Available) > 0 {
		available = strings.Join(e.Available, ", ")
	}
	return fmt.Sprintf("template does not declare %d configured parameter(s): %s\nAvailable parameters: %s",
		len(e.Missing), strings.Join(e.Missing, ", "), available)
}

// ParameterWriteError means a catalogued declaration could not be found at
// write time, so the model changed between extraction and writing.
type ParameterWriteError struct {
	Name     string
	Location Location
	Reason   string
}

func (e *ParameterWriteError) Error() string {
	return fmt.Sprintf("cannot write parameter %q at %s: %s", e.Name, e.Location, e.Reason)
}
