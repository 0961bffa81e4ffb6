package dashboard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Seeker220/letswatch/identity"
	"github.com/Seeker220/letswatch/metrics"
	"github.com/Seeker220/letswatch/models"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// Default fan-out settings
const (
	DefaultConcurrency = 5
	DefaultTimeout     = 5 * time.Second
)

// Enricher decorates watch records with provider metadata
type Enricher struct {
	resolver    Resolver
	concurrency int
	timeout     time.Duration
	logger      logrus.FieldLogger
}

// NewEnricher creates an enricher. Non-positive concurrency or timeout
// fall back to the defaults.
func NewEnricher(resolver Resolver, concurrency int, timeout time.Duration, logger logrus.FieldLogger) *Enricher {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Enricher{
		resolver:    resolver,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logger,
	}
}

type groupKey struct {
	provider string
	kind     models.MediaKind
}

type lookupGroup struct {
	key   groupKey
	route Route
	ids   []string
}

type lookupTask struct {
	group *lookupGroup
	id    string
}

// Enrich merges metadata onto rows, keeping their order. A failed lookup
// only drops the affected items; rows without a title, and catalog rows
// without a poster, are left out. An error is returned only for faults that
// affect the whole call.
func (e *Enricher) Enrich(ctx context.Context, rows []models.WatchRecord) (items []models.DashboardItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("metadata enrichment panicked: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groups := make(map[groupKey]*lookupGroup)
	var order []*lookupGroup
	routes := make([]Route, len(rows))
	for i, row := range rows {
		itemType := identity.Reclassify(row)
		route, ok := e.resolver.Resolve(itemType)
		if !ok {
			return nil, fmt.Errorf("no metadata provider for item type %q", itemType)
		}
		routes[i] = route

		key := groupKey{provider: route.Provider.Name(), kind: route.Kind}
		g, ok := groups[key]
		if !ok {
			g = &lookupGroup{key: key, route: route}
			groups[key] = g
			order = append(order, g)
		}
		if !slices.Contains(g.ids, row.ItemID) {
			g.ids = append(g.ids, row.ItemID)
		}
	}

	found := e.fetch(ctx, order)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items = make([]models.DashboardItem, 0, len(rows))
	for i, row := range rows {
		route := routes[i]
		meta := found[groupKey{provider: route.Provider.Name(), kind: route.Kind}][row.ItemID]
		if meta.Title == "" || (route.RequirePoster && meta.Image == "") {
			continue
		}
		items = append(items, models.DashboardItem{WatchRecord: row, ExternalMetadata: meta})
	}
	return items, nil
}

// fetch runs batch lookups first, then single lookups for providers without
// batch support and for batches that failed.
func (e *Enricher) fetch(ctx context.Context, groups []*lookupGroup) map[groupKey]map[string]models.ExternalMetadata {
	found := make(map[groupKey]map[string]models.ExternalMetadata, len(groups))
	var mu sync.Mutex
	store := func(key groupKey, id string, meta models.ExternalMetadata) {
		mu.Lock()
		defer mu.Unlock()
		if found[key] == nil {
			found[key] = make(map[string]models.ExternalMetadata)
		}
		found[key][id] = meta
	}

	var pending, fallback []lookupTask
	batches := pool.New().WithMaxGoroutines(e.concurrency)
	for _, g := range groups {
		bp, ok := g.route.Provider.(BatchProvider)
		if !ok {
			for _, id := range g.ids {
				pending = append(pending, lookupTask{group: g, id: id})
			}
			continue
		}

		g := g // per-iteration copy (go directive predates Go 1.22 loopvar semantics)
		batches.Go(func() {
			metas, err := e.lookupBatch(ctx, bp, g)
			if err != nil {
				e.logger.WithFields(logrus.Fields{
					"provider": g.key.provider,
					"kind":     g.key.kind,
					"items":    len(g.ids),
					"error":    err,
				}).Warn("Batch metadata lookup failed, falling back to single lookups")

				mu.Lock()
				for _, id := range g.ids {
					fallback = append(fallback, lookupTask{group: g, id: id})
				}
				mu.Unlock()
				return
			}
			for id, meta := range metas {
				store(g.key, id, meta)
			}
		})
	}
	batches.Wait()
	pending = append(pending, fallback...)

	lookups := pool.New().WithMaxGoroutines(e.concurrency)
	for _, task := range pending {
		task := task // per-iteration copy (go directive predates Go 1.22 loopvar semantics)
		lookups.Go(func() {
			meta, err := e.lookupOne(ctx, task)
			if err != nil {
				metrics.ProviderRequests.WithLabelValues(task.group.key.provider, metrics.OutcomeDegraded).Inc()
				e.logger.WithFields(logrus.Fields{
					"provider": task.group.key.provider,
					"kind":     task.group.key.kind,
					"item_id":  task.id,
					"error":    err,
				}).Warn("Metadata lookup failed")
				return
			}
			store(task.group.key, task.id, meta)
		})
	}
	lookups.Wait()

	return found
}

func (e *Enricher) lookupBatch(ctx context.Context, bp BatchProvider, g *lookupGroup) (map[string]models.ExternalMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return bp.LookupBatch(ctx, g.key.kind, g.ids)
}

func (e *Enricher) lookupOne(ctx context.Context, task lookupTask) (models.ExternalMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	meta, err := task.group.route.Provider.Lookup(ctx, task.group.key.kind, task.id)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.ExternalMetadata{}, fmt.Errorf("lookup timed out after %s: %w", e.timeout, err)
	}
	return meta, err
}
