// Package models defines the data structures used throughout the application.
package models

import (
	"time"
)

// ItemType is the canonical kind of a watchable item as stored in the watched table
type ItemType string

// Canonical item types
const (
	ItemTypeMovie        ItemType = "movie"
	ItemTypeTVShow       ItemType = "tv-show"
	ItemTypeTVSeason     ItemType = "tv-season"
	ItemTypeTVEpisode    ItemType = "tv-episode"
	ItemTypeAnimeSeries  ItemType = "anime-series"
	ItemTypeAnimeMovie   ItemType = "anime-movie"
	ItemTypeAnimeEpisode ItemType = "anime-episode"

	// ItemTypeLegacyAnime only appears in rows written by older clients.
	// It is reclassified on read and never written.
	ItemTypeLegacyAnime ItemType = "anime"
)

// CanonicalItemTypes lists every type a new write may store
var CanonicalItemTypes = []ItemType{
	ItemTypeMovie,
	ItemTypeTVShow,
	ItemTypeTVSeason,
	ItemTypeTVEpisode,
	ItemTypeAnimeSeries,
	ItemTypeAnimeMovie,
	ItemTypeAnimeEpisode,
}

// WatchState is the user's progress on an item. The set is open; only
// StateNotWatched has special meaning.
type WatchState string

// Well-known watch states
const (
	StateWatching   WatchState = "watching"
	StateCompleted  WatchState = "completed"
	StateNotWatched WatchState = "not_watched"
)

// MediaKind tells a metadata provider which catalog endpoint to query
type MediaKind string

// Media kinds understood by the providers
const (
	KindMovie MediaKind = "movie"
	KindTV    MediaKind = "tv"
	KindAnime MediaKind = "anime"
)

// WatchKey identifies one watch-state row for a user. Season and Episode use
// 0 for "not applicable".
type WatchKey struct {
	Type    ItemType
	ItemID  string
	Season  int
	Episode int
}

// WatchRecord is one persisted watch-state row
type WatchRecord struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        string     `gorm:"not null;uniqueIndex:idx_watched_identity,priority:1;index:idx_watched_recent,priority:1" json:"user_id"`
	ItemType      ItemType   `gorm:"not null;uniqueIndex:idx_watched_identity,priority:2" json:"item_type"`
	ItemID        string     `gorm:"not null;uniqueIndex:idx_watched_identity,priority:3" json:"item_id"`
	SeasonNumber  int        `gorm:"not null;uniqueIndex:idx_watched_identity,priority:4" json:"season_number"`
	EpisodeNumber int        `gorm:"not null;uniqueIndex:idx_watched_identity,priority:5" json:"episode_number"`
	State         WatchState `gorm:"not null" json:"state"`
	UpdatedAt     time.Time  `gorm:"not null;autoUpdateTime:false;index:idx_watched_recent,priority:2" json:"updated_at"`
}

// TableName keeps the table name used by earlier deployments
func (WatchRecord) TableName() string {
	return "watched"
}

// Key returns the stored identity of the row without any reclassification
func (r WatchRecord) Key() WatchKey {
	return WatchKey{
		Type:    r.ItemType,
		ItemID:  r.ItemID,
		Season:  r.SeasonNumber,
		Episode: r.EpisodeNumber,
	}
}
