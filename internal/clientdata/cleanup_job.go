package clientdata

import (
	"github.com/rs/zerolog"
)

// CleanupJob sweeps expired rows out of the Alpha Vantage cache tables
// so stale quotes and chains never linger past their TTL.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates the cache sweep job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}

// Run deletes every expired entry across the cache tables
func (j *CleanupJob) Run() error {
	results, err := j.repo.DeleteAllExpired()
	if err != nil {
		j.log.Error().Err(err).Msg("Cache sweep failed")
		return err
	}

	var total int64
	for table, count := range results {
		if count > 0 {
			j.log.Debug().
				Str("table", table).
				Int64("removed", count).
				Msg("Expired cache entries removed")
			total += count
		}
	}

	if total > 0 {
		j.log.Info().Int64("removed", total).Msg("Cache swept")
	}

	return nil
}
