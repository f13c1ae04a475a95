package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscan/internal/modules/favorites"
)

// RefreshFavoritesJob periodically re-prices saved positions so their
// stored metrics track the market without manual refreshes.
type RefreshFavoritesJob struct {
	service *favorites.Service
	timeout time.Duration
	log     zerolog.Logger
}

// NewRefreshFavoritesJob creates the favorites refresh job
func NewRefreshFavoritesJob(service *favorites.Service, log zerolog.Logger) *RefreshFavoritesJob {
	return &RefreshFavoritesJob{
		service: service,
		timeout: 5 * time.Minute,
		log:     log.With().Str("job", "refresh_favorites").Logger(),
	}
}

// Name returns the job name
func (j *RefreshFavoritesJob) Name() string {
	return "refresh_favorites"
}

// Run refreshes metrics for all saved favorites
func (j *RefreshFavoritesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.service.Refresh(ctx)
	if err != nil {
		return err
	}

	j.log.Info().
		Int("refreshed", result.Refreshed).
		Int("failed", result.Failed).
		Msg("Scheduled favorites refresh completed")
	return nil
}
