package backup

import "time"

// Outcome is the terminal state of one directory's backup attempt.
type Outcome int

const (
	// Succeeded means the first copy completed cleanly.
	Succeeded Outcome = iota
	// SucceededAfterRetry means the first copy failed on file contention and
	// the stop/retry/start recovery produced a clean copy.
	SucceededAfterRetry
	// Failed means no clean copy was produced.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case SucceededAfterRetry:
		return "succeeded after retry"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// SourceEntry is one top-level directory to back up, named after the managed
// service whose configuration it holds. Immutable for the run.
type SourceEntry struct {
	Name       string
	SourcePath string
	DestPath   string
}

// ItemResult is produced exactly once per SourceEntry per run.
type ItemResult struct {
	Entry   SourceEntry
	Outcome Outcome
	// Err carries the most specific failure encountered; nil unless Failed.
	Err error
}

// Summary aggregates everything a run did, for the caller to render.
type Summary struct {
	StartedAt   time.Time
	Items       []ItemResult
	ArchivePath string
	ArchiveErr  error
	// RotationDeleted lists archive filenames removed by retention, oldest
	// first. RotationErr aggregates per-file deletion failures; rotation
	// continues past them.
	RotationDeleted []string
	RotationErr     error
}

// Counts returns how many items succeeded cleanly, recovered via retry, and
// failed.
func (s *Summary) Counts() (succeeded, recovered, failed int) {
	for _, item := range s.Items {
		switch item.Outcome {
		case Succeeded:
			succeeded++
		case SucceededAfterRetry:
			recovered++
		case Failed:
			failed++
		}
	}
	return succeeded, recovered, failed
}
