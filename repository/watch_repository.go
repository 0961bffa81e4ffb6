// Package repository provides data access layer for the watch-tracking service.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Seeker220/letswatch/database"
	"github.com/Seeker220/letswatch/identity"
	"github.com/Seeker220/letswatch/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxBatchKeys caps a single batch lookup so the query stays under the
// bound-parameter limits of every supported driver.
const MaxBatchKeys = 200

// LegacyClass selects which legacy anime rows a deduplicated query includes
type LegacyClass int

// Legacy anime classes
const (
	LegacyNone LegacyClass = iota
	LegacyMovies
	LegacySeries
)

// TypeFilter describes the rows contributing to a deduplicated selection
type TypeFilter struct {
	Types  []models.ItemType
	Legacy LegacyClass
}

const keyCondition = "item_type = ? AND item_id = ? AND season_number = ? AND episode_number = ?"

var identityColumns = []clause.Column{
	{Name: "user_id"},
	{Name: "item_type"},
	{Name: "item_id"},
	{Name: "season_number"},
	{Name: "episode_number"},
}

// WatchRepository handles database operations for watch states
type WatchRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewWatchRepository creates a new watch repository
func NewWatchRepository(db *database.DB) *WatchRepository {
	return &WatchRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used to stamp writes
func (r *WatchRepository) WithClock(now func() time.Time) *WatchRepository {
	r.now = now
	return r
}

// SetState applies a state transition. not_watched removes the row and
// returns nil; any other state is upserted.
func (r *WatchRepository) SetState(ctx context.Context, userID string, key models.WatchKey, state models.WatchState) (*models.WatchRecord, error) {
	if state == models.StateNotWatched {
		return nil, r.Clear(ctx, userID, key)
	}
	return r.Upsert(ctx, userID, key, state)
}

// Upsert inserts the row or overwrites the state and timestamp of the
// existing one. A legacy anime twin of the key is removed in the same
// transaction.
func (r *WatchRepository) Upsert(ctx context.Context, userID string, key models.WatchKey, state models.WatchState) (*models.WatchRecord, error) {
	if key.Type == models.ItemTypeLegacyAnime {
		return nil, models.NewValidationError("legacy anime type cannot be written")
	}

	updatedAt := r.now().UTC()
	record := &models.WatchRecord{
		UserID:        userID,
		ItemType:      key.Type,
		ItemID:        key.ItemID,
		SeasonNumber:  key.Season,
		EpisodeNumber: key.Episode,
		State:         state,
		UpdatedAt:     updatedAt,
	}

	var stored models.WatchRecord
	err := r.db.Gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: identityColumns,
			DoUpdates: clause.Assignments(map[string]interface{}{
				"state":      string(state),
				"updated_at": updatedAt,
			}),
		}).Create(record).Error
		if err != nil {
			return err
		}

		if identity.HasLegacyTwin(key) {
			err := tx.Where("user_id = ?", userID).
				Where(keyCondition, string(models.ItemTypeLegacyAnime), key.ItemID, key.Season, key.Episode).
				Delete(&models.WatchRecord{}).Error
			if err != nil {
				return err
			}
		}

		return tx.Where("user_id = ?", userID).
			Where(keyCondition, string(key.Type), key.ItemID, key.Season, key.Episode).
			First(&stored).Error
	})
	if err != nil {
		return nil, storageErr("upsert watch state", err)
	}

	return &stored, nil
}

// Clear deletes the row for key and its legacy anime twin. Clearing a
// missing row is not an error.
func (r *WatchRepository) Clear(ctx context.Context, userID string, key models.WatchKey) error {
	match := r.db.Gorm.Where(keyCondition, string(key.Type), key.ItemID, key.Season, key.Episode)
	if identity.HasLegacyTwin(key) {
		match = match.Or(keyCondition, string(models.ItemTypeLegacyAnime), key.ItemID, key.Season, key.Episode)
	}

	err := r.db.Gorm.WithContext(ctx).
		Where("user_id = ?", userID).
		Where(match).
		Delete(&models.WatchRecord{}).Error
	if err != nil {
		return storageErr("clear watch state", err)
	}
	return nil
}

// BatchGet looks up many keys with one query. Keys without a row are absent
// from the result. When a key also has a legacy anime twin the most recently
// updated row wins.
func (r *WatchRepository) BatchGet(ctx context.Context, userID string, keys []models.WatchKey) (map[models.WatchKey]models.WatchRecord, error) {
	result := make(map[models.WatchKey]models.WatchRecord, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	if len(keys) > MaxBatchKeys {
		return nil, models.NewValidationError(fmt.Sprintf("at most %d items can be looked up at once", MaxBatchKeys))
	}

	var match *gorm.DB
	addKey := func(itemType models.ItemType, key models.WatchKey) {
		if match == nil {
			match = r.db.Gorm.Where(keyCondition, string(itemType), key.ItemID, key.Season, key.Episode)
			return
		}
		match = match.Or(keyCondition, string(itemType), key.ItemID, key.Season, key.Episode)
	}
	for _, key := range keys {
		addKey(key.Type, key)
		if identity.HasLegacyTwin(key) {
			addKey(models.ItemTypeLegacyAnime, key)
		}
	}

	var rows []models.WatchRecord
	err := r.db.Gorm.WithContext(ctx).
		Where("user_id = ?", userID).
		Where(match).
		Find(&rows).Error
	if err != nil {
		return nil, storageErr("batch get watch states", err)
	}

	for _, row := range rows {
		key := row.Key()
		key.Type = identity.Reclassify(row)
		if prev, ok := result[key]; ok && !newer(row, prev) {
			continue
		}
		result[key] = row
	}

	return result, nil
}

// SelectRecentWatching returns the user's rows of one type in state
// watching, most recently updated first.
func (r *WatchRepository) SelectRecentWatching(ctx context.Context, userID string, itemType models.ItemType, limit int) ([]models.WatchRecord, error) {
	var rows []models.WatchRecord
	err := r.db.Gorm.WithContext(ctx).
		Where("user_id = ? AND item_type = ? AND state = ?", userID, string(itemType), string(models.StateWatching)).
		Order("updated_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, storageErr("select recent watching", err)
	}
	return rows, nil
}

// SelectRecentWatchingDeduped returns at most limit rows with distinct
// item ids. Each item is represented by its newest contributing row (by
// updated_at, then id) and items are ranked by that row.
func (r *WatchRepository) SelectRecentWatchingDeduped(ctx context.Context, userID string, filter TypeFilter, limit int) ([]models.WatchRecord, error) {
	if len(filter.Types) == 0 && filter.Legacy == LegacyNone {
		return []models.WatchRecord{}, nil
	}

	ranked := r.db.Gorm.
		Model(&models.WatchRecord{}).
		Select("*, ROW_NUMBER() OVER (PARTITION BY item_id ORDER BY updated_at DESC, id DESC) AS item_rank").
		Where("user_id = ? AND state = ?", userID, string(models.StateWatching)).
		Where(r.typeCondition(filter))

	rows := []models.WatchRecord{}
	err := r.db.Gorm.WithContext(ctx).
		Table("(?) AS ranked", ranked).
		Where("item_rank = 1").
		Order("updated_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, storageErr("select recent watching items", err)
	}
	return rows, nil
}

func (r *WatchRepository) typeCondition(filter TypeFilter) *gorm.DB {
	var cond *gorm.DB
	if len(filter.Types) > 0 {
		cond = r.db.Gorm.Where("item_type IN ?", typeNames(filter.Types))
	}

	var legacy string
	switch filter.Legacy {
	case LegacyMovies:
		legacy = "item_type = ? AND season_number = 0 AND episode_number = 0"
	case LegacySeries:
		legacy = "item_type = ? AND (season_number <> 0 OR episode_number <> 0)"
	default:
		return cond
	}

	if cond == nil {
		return r.db.Gorm.Where(legacy, string(models.ItemTypeLegacyAnime))
	}
	return cond.Or(legacy, string(models.ItemTypeLegacyAnime))
}

// newer orders rows by updated_at, then by insertion order
func newer(a, b models.WatchRecord) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID > b.ID
}

func typeNames(types []models.ItemType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

func storageErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return fmt.Errorf("failed to %s: %w: %w", op, models.ErrStorageUnavailable, err)
}
