package backup

import (
	"errors"
	"fmt"
	"time"

	"github.com/ybenkhadda/dockback/internal/logger"
	"github.com/ybenkhadda/dockback/internal/snapshot"
)

// Copier snapshots one directory tree into a staging destination.
type Copier interface {
	Copy(sourcePath, destPath string) error
}

// Coordinator controls the external service owning a config directory.
type Coordinator interface {
	Managed(name string) bool
	Stop(name string) error
	Start(name string) error
}

// item drives a single SourceEntry through copy and, when the copy hits file
// contention, the stop/wait/retry/start recovery flow.
type item struct {
	entry  SourceEntry
	copier Copier
	coord  Coordinator
	wait   time.Duration
	sleep  func(time.Duration)
	log    logger.Logger
}

// run returns the entry's terminal result. The restart is attempted whenever
// a stop was attempted, whatever the stop or the retried copy did: leaving
// the service down is worse than a failed backup.
func (it *item) run() ItemResult {
	res := ItemResult{Entry: it.entry}

	err := it.copier.Copy(it.entry.SourcePath, it.entry.DestPath)
	if err == nil {
		res.Outcome = Succeeded
		return res
	}

	var partial *snapshot.PartialError
	if !errors.As(err, &partial) {
		// Permissions, missing source, unreadable tree. Stopping the service
		// will not change any of it.
		res.Outcome = Failed
		res.Err = err
		return res
	}

	it.log.Warn("copy hit file contention",
		"entry", it.entry.Name,
		"failed_files", len(partial.Failures),
	)

	if !it.coord.Managed(it.entry.Name) {
		it.log.Warn("no compose project for entry, cannot recover", "entry", it.entry.Name)
		res.Outcome = Failed
		res.Err = err
		return res
	}

	stopErr := it.coord.Stop(it.entry.Name)
	var retryErr error
	if stopErr == nil {
		// Give the stopped service time to release its file handles. A failed
		// stop skips the wait and the retry: no handles will be released.
		it.log.Info("waiting for file handles to release",
			"entry", it.entry.Name,
			"delay", it.wait.String(),
		)
		it.sleep(it.wait)
		retryErr = it.copier.Copy(it.entry.SourcePath, it.entry.DestPath)
	} else {
		it.log.Error("failed to stop service", "entry", it.entry.Name, "error", stopErr.Error())
	}

	if startErr := it.coord.Start(it.entry.Name); startErr != nil {
		it.log.Error("failed to restart service", "entry", it.entry.Name, "error", startErr.Error())
	}

	switch {
	case stopErr != nil:
		res.Outcome = Failed
		res.Err = fmt.Errorf("copy failed and stop did not succeed: %w", stopErr)
	case retryErr != nil:
		res.Outcome = Failed
		res.Err = fmt.Errorf("copy failed after service stop: %w", retryErr)
	default:
		res.Outcome = SucceededAfterRetry
	}
	return res
}
