// Package project handles PBIP project trees: locating the template
// artifacts, cloning the tree and rewriting the base name inside it.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/pbipgen/internal/model"
)

// Artifact suffixes of a PBIP project rooted at <base>.pbip.
const (
	DescriptorExt       = ".pbip"
	ReportSuffix        = ".Report"
	SemanticModelSuffix = ".SemanticModel"
)

// Template is the master project every output is cloned from. It is read-only.
type Template struct {
	Root             string
	BaseName         string
	Descriptor       string
	ReportDir        string
	SemanticModelDir string
	Format           model.Format
}

// TemplateError describes why a directory is not a usable template.
type TemplateError struct {
	Root   string
	Reason string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("invalid template %s: %s\nHint: a template holds <Name>.pbip, <Name>.Report/ and <Name>.SemanticModel/", e.Root, e.Reason)
}

// LoadTemplate inspects root and resolves the template's base name,
// artifacts and semantic model format.
func LoadTemplate(root string) (*Template, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &TemplateError{Root: abs, Reason: err.Error()}
	}
	if !info.IsDir() {
		return nil, &TemplateError{Root: abs, Reason: "not a directory"}
	}

	base, err := baseName(abs)
	if err != nil {
		return nil, err
	}

	t := &Template{
		Root:             abs,
		BaseName:         base,
		Descriptor:       filepath.Join(abs, base+DescriptorExt),
		ReportDir:        filepath.Join(abs, base+ReportSuffix),
		SemanticModelDir: filepath.Join(abs, base+SemanticModelSuffix),
	}
	for _, dir := range []string{t.ReportDir, t.SemanticModelDir} {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			return nil, &TemplateError{Root: abs, Reason: "missing " + filepath.Base(dir) + "/"}
		}
	}

	t.Format = model.DetectFormat(t.SemanticModelDir)
	if t.Format == model.FormatUnknown {
		return nil, &model.FormatDetectionError{Dir: t.SemanticModelDir}
	}
	return t, nil
}

// baseName picks the descriptor stem. With several descriptors the one
// named after the directory wins.
func baseName(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", &TemplateError{Root: root, Reason: err.Error()}
	}

	var stems []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), DescriptorExt) {
			stems = append(stems, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		}
	}

	switch len(stems) {
	case 0:
		return "", &TemplateError{Root: root, Reason: "no " + DescriptorExt + " file"}
	case 1:
		if stems[0] == "" {
			return "", &TemplateError{Root: root, Reason: "descriptor has an empty name"}
		}
		return stems[0], nil
	}

	dirName := filepath.Base(root)
	for _, s := range stems {
		if s == dirName {
			return s, nil
		}
	}
	sort.Strings(stems)
	return "", &TemplateError{Root: root, Reason: "several descriptors (" + strings.Join(stems, ", ") + ") and none matches the folder name"}
}

// Catalog extracts the parameter catalog of the template's semantic model.
func (t *Template) Catalog() (*model.Catalog, error) {
	return model.Extract(t.SemanticModelDir)
}

// Artifacts returns the descriptor, report and semantic model names for base.
func Artifacts(base string) []string {
	return []string{base + DescriptorExt, base + ReportSuffix, base + SemanticModelSuffix}
}

// SemanticModelDir returns the semantic model folder of a project rooted at root.
func SemanticModelDir(root, base string) string {
	return filepath.Join(root, base+SemanticModelSuffix)
}
