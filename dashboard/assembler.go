package dashboard

import (
	"context"

	"github.com/Seeker220/letswatch/metrics"
	"github.com/Seeker220/letswatch/models"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

// BucketSelector returns the raw dashboard rows of a user
type BucketSelector interface {
	SelectDashboardBuckets(ctx context.Context, userID string) (*Buckets, error)
}

// BucketEnricher decorates one bucket with metadata
type BucketEnricher interface {
	Enrich(ctx context.Context, rows []models.WatchRecord) ([]models.DashboardItem, error)
}

// Assembler builds the dashboard response
type Assembler struct {
	selector BucketSelector
	enricher BucketEnricher
	logger   logrus.FieldLogger
}

// NewAssembler creates an assembler
func NewAssembler(selector BucketSelector, enricher BucketEnricher, logger logrus.FieldLogger) *Assembler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Assembler{selector: selector, enricher: enricher, logger: logger}
}

// Build selects and enriches the four buckets. Storage failures are
// returned; an enrichment failure only downgrades its bucket to raw rows.
func (a *Assembler) Build(ctx context.Context, userID string) (*models.Dashboard, error) {
	buckets, err := a.selector.SelectDashboardBuckets(ctx, userID)
	if err != nil {
		return nil, err
	}

	var d models.Dashboard
	var wg conc.WaitGroup
	wg.Go(func() { d.Movies = a.enrichBucket(ctx, "movies", buckets.Movies) })
	wg.Go(func() { d.Series = a.enrichBucket(ctx, "series", buckets.Series) })
	wg.Go(func() { d.AnimeMovies = a.enrichBucket(ctx, "animeMovies", buckets.AnimeMovies) })
	wg.Go(func() { d.AnimeSeries = a.enrichBucket(ctx, "animeSeries", buckets.AnimeSeries) })
	wg.Wait()

	return &d, nil
}

func (a *Assembler) enrichBucket(ctx context.Context, bucket string, rows []models.WatchRecord) []models.DashboardItem {
	if len(rows) == 0 {
		return []models.DashboardItem{}
	}

	items, err := a.enricher.Enrich(ctx, rows)
	if err != nil {
		metrics.DashboardFallbacks.WithLabelValues(bucket).Inc()
		a.logger.WithFields(logrus.Fields{
			"bucket": bucket,
			"rows":   len(rows),
			"error":  err,
		}).Warn("Dashboard enrichment failed, returning raw rows")
		return models.RawDashboardItems(rows)
	}
	if items == nil {
		return []models.DashboardItem{}
	}
	return items
}
