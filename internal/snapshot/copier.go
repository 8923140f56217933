package snapshot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ybenkhadda/dockback/internal/logger"
)

// FileFailure records one file inside a tree that could not be copied.
type FileFailure struct {
	// Path is relative to the root of the copied tree.
	Path string
	Err  error
}

// PartialError reports that some files inside the tree failed to copy while
// the rest of the tree succeeded. Per-file contention (a service holding a
// lock or write-ahead log open) surfaces this way, so callers treat it as
// retryable; any other copy error is not.
type PartialError struct {
	Failures []FileFailure
}

func (e *PartialError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Path, f.Err))
	}
	return fmt.Sprintf("%d file(s) failed to copy: %s", len(e.Failures), strings.Join(parts, "; "))
}

// DirCopier copies one directory tree into a staging destination.
type DirCopier struct {
	log logger.Logger
}

// NewDirCopier returns a DirCopier logging through log.
func NewDirCopier(log logger.Logger) *DirCopier {
	return &DirCopier{log: log}
}

// Copy replaces destPath with a fresh copy of the tree rooted at sourcePath.
// Symbolic links are recreated as links, never dereferenced; a dangling link
// is copied as-is. Returns *PartialError when individual files fail but the
// walk completes, or a plain error when the operation cannot proceed at all.
func (c *DirCopier) Copy(sourcePath, destPath string) error {
	info, err := os.Lstat(sourcePath)
	if err != nil {
		return fmt.Errorf("stat source %q: %w", sourcePath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %q is not a directory", sourcePath)
	}

	// Fresh copy, never a merge.
	if err := os.RemoveAll(destPath); err != nil {
		return fmt.Errorf("remove previous copy %q: %w", destPath, err)
	}
	if err := os.MkdirAll(destPath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("create destination %q: %w", destPath, err)
	}

	var failures []FileFailure
	if err := c.copyTree(sourcePath, destPath, sourcePath, &failures); err != nil {
		return err
	}
	if len(failures) > 0 {
		return &PartialError{Failures: failures}
	}
	return nil
}

// copyTree copies the children of src into dst, recording per-file failures
// and continuing. Only a failure to list src itself is fatal: at that point
// nothing below it can be enumerated.
func (c *DirCopier) copyTree(src, dst, root string, failures *[]FileFailure) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		if src == root {
			return fmt.Errorf("read source %q: %w", src, err)
		}
		c.record(src, root, err, failures)
		return nil
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		switch {
		case entry.Type()&os.ModeSymlink != 0:
			if err := copySymlink(srcPath, dstPath); err != nil {
				c.record(srcPath, root, err, failures)
			}
		case entry.IsDir():
			info, err := entry.Info()
			if err != nil {
				c.record(srcPath, root, err, failures)
				continue
			}
			if err := os.MkdirAll(dstPath, info.Mode().Perm()); err != nil {
				c.record(srcPath, root, err, failures)
				continue
			}
			if err := c.copyTree(srcPath, dstPath, root, failures); err != nil {
				return err
			}
		default:
			if err := copyFile(srcPath, dstPath); err != nil {
				c.record(srcPath, root, err, failures)
			}
		}
	}
	return nil
}

func (c *DirCopier) record(path, root string, err error, failures *[]FileFailure) {
	rel, relErr := filepath.Rel(root, path)
	if relErr != nil {
		rel = path
	}
	c.log.Warn("failed to copy file", "path", rel, "error", err.Error())
	*failures = append(*failures, FileFailure{Path: rel, Err: err})
}

// copySymlink recreates the link itself. The target is not resolved, so a
// link pointing at a missing file still copies cleanly.
func copySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return fmt.Errorf("read link: %w", err)
	}
	if err := os.Symlink(target, dst); err != nil {
		return fmt.Errorf("create link: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy contents: %w", err)
	}
	return out.Close()
}
