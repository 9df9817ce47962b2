// Package model reads and patches the parameter store of a Power BI semantic model.
//
// Two on-disk formats are supported: a single JSON document (model.bim) and a
// TMDL definition folder with one file per table. Both are edited in place:
// only the literal of a parameter declaration changes, every other byte of the
// file is kept as it was.
package model

import (
	"os"
	"path/filepath"
)

// Format identifies how a semantic model stores its parameters.
type Format string

// Known formats.
const (
	FormatJSON             Format = "json"
	FormatTableDefinitions Format = "tmdl"
	FormatUnknown          Format = "unknown"
)

// Well-known names inside a semantic model folder.
const (
	BIMFileName   = "model.bim"
	DefinitionDir = "definition"
	ModelTMDLFile = "model.tmdl"
	TablesDir     = "tables"
	TableExt      = ".tmdl"
)

// DetectFormat inspects a semantic model directory and reports its format.
func DetectFormat(dir string) Format {
	if isFile(filepath.Join(dir, BIMFileName)) {
		return FormatJSON
	}

	definition := filepath.Join(dir, DefinitionDir)
	if isFile(filepath.Join(definition, ModelTMDLFile)) && isDir(filepath.Join(definition, TablesDir)) {
		return FormatTableDefinitions
	}

	return FormatUnknown
}

// Document is the parameter store of one semantic model.
type Document interface {
	// Format returns the on-disk format backing the document.
	Format() Format
	// Parameters extracts every declaration carrying the parameter marker.
	Parameters() ([]Parameter, error)
	// WriteParameters replaces the literal of each assigned parameter.
	// Assignments are located by the Parameter's Location and verified
	// against its Name before anything is written.
	WriteParameters(assignments []Assignment) error
}

// Assignment pairs a catalogued parameter with its new value.
type Assignment struct {
	Parameter Parameter
	Value     Literal
}

// New returns the document implementation for format rooted at dir.
// This is the only place where the format decides behavior.
func New(format Format, dir string) (Document, error) {
	switch format {
	case FormatJSON:
		return &bimDocument{path: filepath.Join(dir, BIMFileName)}, nil
	case FormatTableDefinitions:
		return &tmdlDocument{root: dir}, nil
	}
	return nil, &FormatDetectionError{Dir: dir}
}

// Open detects the format of dir and returns the matching document.
func Open(dir string) (Document, error) {
	return New(DetectFormat(dir), dir)
}

// Extract opens the semantic model in dir and builds its parameter catalog.
func Extract(dir string) (*Catalog, error) {
	doc, err := Open(dir)
	if err != nil {
		return nil, err
	}

	params, err := doc.Parameters()
	if err != nil {
		return nil, err
	}

	return NewCatalog(doc.Format(), params)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
