package project

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// DefaultCachePatterns are the base names never copied into a generated project.
var DefaultCachePatterns = []string{"cache.abf"}

// CloneError wraps an I/O failure while copying a project tree.
type CloneError struct {
	Src string
	Dst string
	Err error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("failed to clone %s to %s: %v", e.Src, e.Dst, e.Err)
}

func (e *CloneError) Unwrap() error { return e.Err }

// Cloner copies template trees.
type Cloner struct {
	// Exclude holds filepath.Match patterns tested against base names.
	Exclude []string
	Logger  *slog.Logger
}

// NewCloner creates a cloner skipping files that match exclude.
func NewCloner(exclude []string, logger *slog.Logger) *Cloner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cloner{Exclude: exclude, Logger: logger}
}

// Clone copies src to dst. The copy is built in a staging directory beside
// dst and moved into place at the end, so dst never holds a partial tree.
// dst must not exist.
func (c *Cloner) Clone(ctx context.Context, src, dst string) (err error) {
	logger := c.logger()

	if _, statErr := os.Lstat(dst); statErr == nil {
		return &CloneError{Src: src, Dst: dst, Err: fs.ErrExist}
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return &CloneError{Src: src, Dst: dst, Err: err}
	}

	parent := filepath.Dir(dst)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return &CloneError{Src: src, Dst: dst, Err: err}
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return &CloneError{Src: src, Dst: dst, Err: err}
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(staging); rmErr != nil {
				logger.Warn("failed to remove staging directory", "path", staging, "error", rmErr)
			}
		}
	}()

	if err := c.copyTree(ctx, src, staging); err != nil {
		return &CloneError{Src: src, Dst: dst, Err: err}
	}
	if err := os.Chmod(staging, srcInfo.Mode().Perm()); err != nil {
		return &CloneError{Src: src, Dst: dst, Err: err}
	}
	if err := os.Rename(staging, dst); err != nil {
		return &CloneError{Src: src, Dst: dst, Err: err}
	}

	logger.Debug("cloned project", "src", src, "dst", dst)
	return nil
}

func (c *Cloner) copyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)

		if !d.IsDir() && MatchAny(c.Exclude, d.Name()) {
			c.logger().Debug("skipping excluded file", "path", rel)
			return nil
		}

		switch mode := d.Type(); {
		case mode.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.Mkdir(target, info.Mode().Perm()|0o700)
		case mode&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case mode.IsRegular():
			return copyFile(path, target)
		default:
			return fmt.Errorf("unsupported file type %s at %s", mode, rel)
		}
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (c *Cloner) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// MatchAny reports whether name matches one of the filepath.Match patterns.
// Malformed patterns never match.
func MatchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// ValidatePatterns checks that every pattern is well formed.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	return nil
}
