package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscan/internal/modules/scanhistory"
)

// PruneHistoryJob trims old scan history rows so the scanner database
// does not grow without bound.
type PruneHistoryJob struct {
	repo      *scanhistory.Repository
	retention time.Duration
	log       zerolog.Logger
}

// NewPruneHistoryJob creates the scan history pruning job. A
// non-positive retention defaults to 30 days.
func NewPruneHistoryJob(repo *scanhistory.Repository, retention time.Duration, log zerolog.Logger) *PruneHistoryJob {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &PruneHistoryJob{
		repo:      repo,
		retention: retention,
		log:       log.With().Str("job", "prune_scan_history").Logger(),
	}
}

// Name returns the job name
func (j *PruneHistoryJob) Name() string {
	return "prune_scan_history"
}

// Run deletes scan history entries older than the retention window
func (j *PruneHistoryJob) Run() error {
	removed, err := j.repo.Prune(time.Now().Add(-j.retention))
	if err != nil {
		return err
	}

	j.log.Info().Int64("removed", removed).Msg("Scan history pruned")
	return nil
}
