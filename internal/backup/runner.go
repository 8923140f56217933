package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ybenkhadda/dockback/internal/archive"
	"github.com/ybenkhadda/dockback/internal/config"
	"github.com/ybenkhadda/dockback/internal/logger"
)

// Runner drives one full backup pass: every top-level source directory is
// copied into staging, the staging tree is zipped into a dated archive, and
// retention prunes old archives. Entries run strictly one at a time; stopping
// several services at once multiplies the blast radius of a coordination bug.
type Runner struct {
	cfg      config.Config
	copier   Copier
	coord    Coordinator
	archiver *archive.Archiver
	log      logger.Logger
	sleep    func(time.Duration)
	now      func() time.Time
}

// NewRunner wires a Runner from its collaborators.
func NewRunner(cfg config.Config, copier Copier, coord Coordinator, log logger.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		copier:   copier,
		coord:    coord,
		archiver: archive.New(log),
		log:      log,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// Run executes a single backup pass and returns its summary. A non-nil error
// means a run-level precondition failed (unreadable source root, unusable
// staging root) and no entry was processed; per-entry failures never abort
// the run and land in the summary instead.
func (r *Runner) Run() (*Summary, error) {
	sum := &Summary{StartedAt: r.now()}

	r.log.Info("starting docker config backup",
		"source", r.cfg.Backup.SourceDir,
		"staging", r.cfg.Backup.StagingDir,
	)

	dirEntries, err := os.ReadDir(r.cfg.Backup.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("read source root %q: %w", r.cfg.Backup.SourceDir, err)
	}
	if err := os.MkdirAll(r.cfg.Backup.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root %q: %w", r.cfg.Backup.StagingDir, err)
	}

	// ReadDir sorts by name, and archive timestamps are lexicographic, so the
	// whole run is reproducible from its log.
	for _, de := range dirEntries {
		if !de.IsDir() {
			r.log.Debug("skipping non-directory entry", "name", de.Name())
			continue
		}
		entry := SourceEntry{
			Name:       de.Name(),
			SourcePath: filepath.Join(r.cfg.Backup.SourceDir, de.Name()),
			DestPath:   filepath.Join(r.cfg.Backup.StagingDir, de.Name()),
		}
		r.log.Info("backing up directory", "entry", entry.Name)

		it := &item{
			entry:  entry,
			copier: r.copier,
			coord:  r.coord,
			wait:   r.cfg.Retry.QuiescenceDelay,
			sleep:  r.sleep,
			log:    r.log,
		}
		res := it.run()
		sum.Items = append(sum.Items, res)

		if res.Outcome == Failed {
			r.log.Error("backup failed for directory",
				"entry", entry.Name,
				"error", res.Err.Error(),
			)
		} else {
			r.log.Info("backed up directory",
				"entry", entry.Name,
				"outcome", res.Outcome.String(),
			)
		}
	}

	if len(sum.Items) == 0 {
		r.log.Info("no directories to back up, skipping archive and rotation")
		return sum, nil
	}

	archivePath, err := r.archiver.Create(r.cfg.Backup.StagingDir, r.cfg.Backup.ArchiveDir, r.now())
	if err != nil {
		// Staging stays on disk for inspection, and rotation is skipped: with
		// no new archive there is nothing to make room for.
		sum.ArchiveErr = err
		r.log.Error("archive creation failed, staging preserved", "error", err.Error())
		return sum, nil
	}
	sum.ArchivePath = archivePath

	deleted, rotErr := r.archiver.Rotate(r.cfg.Backup.ArchiveDir, r.cfg.Retention.KeepLast)
	sum.RotationDeleted = deleted
	sum.RotationErr = rotErr
	if rotErr != nil {
		r.log.Error("rotation finished with errors", "error", rotErr.Error())
	}

	return sum, nil
}
