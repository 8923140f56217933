package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"go.uber.org/multierr"

	"github.com/ybenkhadda/dockback/internal/logger"
)

const (
	// Prefix and Suffix identify this engine's archives among whatever else
	// lives in the archive directory.
	Prefix = "docker_configs_backup_"
	Suffix = ".zip"

	// timestampLayout is fixed-width and zero-padded, so sorting archive
	// names lexicographically sorts them chronologically.
	timestampLayout = "2006-01-02_15-04-05"
)

// Name returns the archive filename for a run started at t.
func Name(t time.Time) string {
	return Prefix + t.Format(timestampLayout) + Suffix
}

// Archiver zips a staging tree into a dated archive and prunes old archives.
type Archiver struct {
	log logger.Logger
}

// New returns an Archiver logging through log.
func New(log logger.Logger) *Archiver {
	return &Archiver{log: log}
}

// Create zips stagingDir's contents into outputDir under the dated name and
// returns the archive path. The staging tree's children sit at the top level
// of the archive, no wrapping directory. On success the staging tree is
// removed; on failure it is left in place and the half-written zip is not.
func (a *Archiver) Create(stagingDir, outputDir string, now time.Time) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive directory %q: %w", outputDir, err)
	}

	outPath := filepath.Join(outputDir, Name(now))
	a.log.Info("creating archive", "path", outPath)

	if err := a.writeZip(stagingDir, outPath); err != nil {
		os.Remove(outPath)
		return "", err
	}

	if err := os.RemoveAll(stagingDir); err != nil {
		// The archive itself is complete and usable; stale staging will be
		// replaced entry by entry on the next run.
		a.log.Error("failed to remove staging tree", "path", stagingDir, "error", err.Error())
	}

	a.log.Info("archive created", "path", outPath)
	return outPath, nil
}

func (a *Archiver) writeZip(stagingDir, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create archive file %q: %w", outPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	walkErr := filepath.WalkDir(stagingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		return addEntry(zw, path, filepath.ToSlash(rel), d)
	})
	if walkErr != nil {
		zw.Close()
		return fmt.Errorf("write archive %q: %w", outPath, walkErr)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive %q: %w", outPath, err)
	}
	return out.Close()
}

func addEntry(zw *zip.Writer, path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name

	switch {
	case d.IsDir():
		header.Name += "/"
		_, err := zw.CreateHeader(header)
		return err
	case info.Mode()&fs.ModeSymlink != 0:
		// Store the link target as the entry body, the convention zip tools
		// use for symlinks. Dangling targets are stored like any other.
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		_, err = w.Write([]byte(target))
		return err
	default:
		header.Method = zip.Deflate
		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	}
}

// Rotate deletes the oldest archives in dir beyond keepLast, returning the
// deleted filenames oldest first. Individual deletion failures are collected
// and reported but never stop the remaining deletions.
func (a *Archiver) Rotate(dir string, keepLast int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read archive directory %q: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, Prefix) || !strings.HasSuffix(name, Suffix) {
			continue
		}
		names = append(names, name)
	}

	if len(names) <= keepLast {
		a.log.Info("no rotation needed", "archives", len(names), "keep_last", keepLast)
		return nil, nil
	}

	// Lexicographic order is chronological order for these names.
	sort.Strings(names)
	doomed := names[:len(names)-keepLast]
	a.log.Info("rotating archives",
		"archives", len(names),
		"keep_last", keepLast,
		"deleting", len(doomed),
	)

	var deleted []string
	var errs error
	for _, name := range doomed {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			a.log.Error("failed to delete old archive", "name", name, "error", err.Error())
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", name, err))
			continue
		}
		a.log.Info("deleted old archive", "name", name)
		deleted = append(deleted, name)
	}
	return deleted, errs
}
