package workers

import (
	"context"
	"time"
)

// RecordPurger deletes archived records older than a cutoff.
type RecordPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ArchivePurger enforces the retention window on the invocation archive.
type ArchivePurger struct {
	*BaseWorker
	archive   RecordPurger
	retention time.Duration
}

// NewArchivePurger creates a purge worker for the given archive.
func NewArchivePurger(archive RecordPurger, retention, interval time.Duration) *ArchivePurger {
	return &ArchivePurger{
		BaseWorker: NewBaseWorker("archive_purger", interval, archive != nil && retention > 0),
		archive:    archive,
		retention:  retention,
	}
}

// Run deletes records past the retention window.
func (w *ArchivePurger) Run(ctx context.Context) error {
	start := time.Now()

	purged, err := w.archive.PurgeOlderThan(ctx, time.Now().Add(-w.retention))
	duration := time.Since(start)
	if err != nil {
		w.RecordError(err, duration)
		return err
	}

	if purged > 0 {
		w.Log().Infow("Purged archived records", "purged", purged, "retention", w.retention)
	}
	w.RecordRun(duration)
	return nil
}
