package project

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultTextExtensions are the file extensions rewritten by the reference pass.
var DefaultTextExtensions = []string{
	".pbip", ".pbir", ".pbism", ".json", ".tmdl", ".bim", ".platform",
	".md", ".txt", ".xml", ".m", ".dax", ".yaml", ".yml", ".csv",
}

// RewriteWarning is a file the reference pass had to skip. It does not fail the row.
type RewriteWarning struct {
	Path   string
	Reason string
}

func (w RewriteWarning) String() string {
	return w.Path + ": " + w.Reason
}

// RenameReport summarizes a reference pass.
type RenameReport struct {
	FilesScanned   int
	FilesRewritten int
	Renamed        int
	Warnings       []RewriteWarning
}

// RenameArtifacts renames the descriptor, report folder and semantic model
// folder of the project at root from oldBase to newBase. Each must exist.
func RenameArtifacts(root, oldBase, newBase string) error {
	if oldBase == newBase {
		return nil
	}
	from := Artifacts(oldBase)
	to := Artifacts(newBase)
	for i := range from {
		src := filepath.Join(root, from[i])
		dst := filepath.Join(root, to[i])
		if _, err := os.Lstat(dst); err == nil {
			return fmt.Errorf("cannot rename %s: %s already exists", from[i], to[i])
		}
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("failed to rename %s: %w", from[i], err)
		}
	}
	return nil
}

// Renamer rewrites every occurrence of a base name inside a project tree.
// Matching is exact and case-sensitive.
type Renamer struct {
	TextExtensions []string
	Logger         *slog.Logger
}

// NewRenamer creates a renamer. An empty extension list uses
// DefaultTextExtensions; the entry "*" treats every file as text.
func NewRenamer(textExtensions []string, logger *slog.Logger) *Renamer {
	if len(textExtensions) == 0 {
		textExtensions = DefaultTextExtensions
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Renamer{TextExtensions: textExtensions, Logger: logger}
}

// Apply replaces oldName with newName in file contents, file names and
// directory names below root. root itself keeps its name.
//
// The tree is processed post-order: a directory's children are handled
// before the directory is renamed, so no path is invalidated while in use.
func (r *Renamer) Apply(root, oldName, newName string) (*RenameReport, error) {
	if oldName == "" {
		return nil, errors.New("rename: empty name")
	}
	report := &RenameReport{}
	if oldName == newName {
		return report, nil
	}

	w := &renameWalk{r: r, root: root, old: oldName, new: newName, report: report}
	if err := w.dir(root); err != nil {
		return report, err
	}
	return report, nil
}

type renameWalk struct {
	r        *Renamer
	root     string
	old, new string
	report   *RenameReport
}

func (w *renameWalk) dir(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", w.rel(path), err)
	}

	for _, e := range entries {
		child := filepath.Join(path, e.Name())
		switch {
		case e.Type()&fs.ModeSymlink != 0:
			// Links are renamed but never followed.
		case e.IsDir():
			if err := w.dir(child); err != nil {
				return err
			}
		case e.Type().IsRegular():
			if err := w.file(child); err != nil {
				return err
			}
		}
	}

	for _, e := range entries {
		if !strings.Contains(e.Name(), w.old) {
			continue
		}
		src := filepath.Join(path, e.Name())
		dst := filepath.Join(path, strings.ReplaceAll(e.Name(), w.old, w.new))
		if _, err := os.Lstat(dst); err == nil {
			return fmt.Errorf("cannot rename %s: %s already exists", w.rel(src), w.rel(dst))
		}
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("failed to rename %s: %w", w.rel(src), err)
		}
		w.report.Renamed++
		w.r.Logger.Debug("renamed", "from", w.rel(src), "to", w.rel(dst))
	}
	return nil
}

func (w *renameWalk) file(path string) error {
	if !w.r.isText(path) {
		return nil
	}
	w.report.FilesScanned++

	info, err := os.Stat(path)
	if err != nil {
		w.warn(path, err.Error())
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		w.warn(path, err.Error())
		return nil
	}
	if !bytes.Contains(data, []byte(w.old)) {
		return nil
	}
	if !utf8.Valid(data) {
		w.warn(path, "not valid UTF-8")
		return nil
	}

	out := bytes.ReplaceAll(data, []byte(w.old), []byte(w.new))
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.rel(path), err)
	}
	w.report.FilesRewritten++
	return nil
}

func (w *renameWalk) warn(path, reason string) {
	warning := RewriteWarning{Path: w.rel(path), Reason: reason}
	w.report.Warnings = append(w.report.Warnings, warning)
	w.r.Logger.Warn("skipped reference rewrite", "path", warning.Path, "reason", reason)
}

func (w *renameWalk) rel(path string) string {
	if rel, err := filepath.Rel(w.root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

func (r *Renamer) isText(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range r.TextExtensions {
		if e == "*" || strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
