package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/Seeker220/letswatch/identity"
	"github.com/Seeker220/letswatch/models"
	"github.com/Seeker220/letswatch/repository"

	"github.com/sourcegraph/conc/pool"
)

// DefaultLimit is the number of rows per bucket and also its upper bound
const DefaultLimit = 5

// WatchStore is the storage the selector reads from
type WatchStore interface {
	SelectRecentWatching(ctx context.Context, userID string, itemType models.ItemType, limit int) ([]models.WatchRecord, error)
	SelectRecentWatchingDeduped(ctx context.Context, userID string, filter repository.TypeFilter, limit int) ([]models.WatchRecord, error)
}

// Buckets holds the raw rows of each dashboard section
type Buckets struct {
	Movies      []models.WatchRecord
	Series      []models.WatchRecord
	AnimeMovies []models.WatchRecord
	AnimeSeries []models.WatchRecord
}

var (
	seriesFilter = repository.TypeFilter{
		Types: []models.ItemType{models.ItemTypeTVShow, models.ItemTypeTVSeason, models.ItemTypeTVEpisode},
	}
	animeMoviesFilter = repository.TypeFilter{
		Types:  []models.ItemType{models.ItemTypeAnimeMovie},
		Legacy: repository.LegacyMovies,
	}
	animeSeriesFilter = repository.TypeFilter{
		Types:  []models.ItemType{models.ItemTypeAnimeSeries, models.ItemTypeAnimeEpisode},
		Legacy: repository.LegacySeries,
	}
)

// Selector picks the rows shown on the dashboard
type Selector struct {
	store WatchStore
	limit int
}

// NewSelector creates a selector returning at most limit rows per bucket.
// Limits outside 1..DefaultLimit use DefaultLimit.
func NewSelector(store WatchStore, limit int) *Selector {
	if limit < 1 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	return &Selector{store: store, limit: limit}
}

// SelectDashboardBuckets runs the four bucket queries concurrently. Any
// failure fails the whole selection. Legacy anime rows come back with their
// reclassified type.
func (s *Selector) SelectDashboardBuckets(ctx context.Context, userID string) (*Buckets, error) {
	var b Buckets
	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		rows, err := s.store.SelectRecentWatching(ctx, userID, models.ItemTypeMovie, s.limit)
		b.Movies = rows
		return err
	})
	p.Go(func(ctx context.Context) error {
		rows, err := s.store.SelectRecentWatchingDeduped(ctx, userID, seriesFilter, s.limit)
		b.Series = rows
		return err
	})
	p.Go(func(ctx context.Context) error {
		rows, err := s.store.SelectRecentWatchingDeduped(ctx, userID, animeMoviesFilter, s.limit)
		b.AnimeMovies = identity.ReclassifyAll(rows)
		return err
	})
	p.Go(func(ctx context.Context) error {
		rows, err := s.store.SelectRecentWatchingDeduped(ctx, userID, animeSeriesFilter, s.limit)
		b.AnimeSeries = identity.ReclassifyAll(rows)
		return err
	})

	if err := p.Wait(); err != nil {
		if errors.Is(err, models.ErrStorageUnavailable) {
			return nil, fmt.Errorf("failed to select dashboard buckets: %w", err)
		}
		return nil, fmt.Errorf("failed to select dashboard buckets: %w: %w", models.ErrStorageUnavailable, err)
	}
	return &b, nil
}
