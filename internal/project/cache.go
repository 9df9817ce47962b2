package project

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// RemoveCache deletes every file below root whose base name matches one of
// patterns and returns the removed paths relative to root.
func RemoveCache(root string, patterns []string) ([]string, error) {
	var removed []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !MatchAny(patterns, d.Name()) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		removed = append(removed, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to remove cache files: %w", err)
	}
	return removed, nil
}

// FindCache lists files below root matching patterns without removing them.
func FindCache(root string, patterns []string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && MatchAny(patterns, d.Name()) {
			rel, _ := filepath.Rel(root, path)
			found = append(found, filepath.ToSlash(rel))
		}
		return nil
	})
	return found, err
}
