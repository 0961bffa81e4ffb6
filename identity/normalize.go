// Package identity maps the item descriptors clients send onto the canonical
// watch-state key used by storage.
package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Seeker220/letswatch/models"
)

// aliases maps every accepted client type string onto its canonical type.
// The legacy "anime" type is handled separately because it needs season and
// episode to classify.
var aliases = map[string]models.ItemType{
	"movie":      models.ItemTypeMovie,
	"tmdb-movie": models.ItemTypeMovie,

	"tv-show":     models.ItemTypeTVShow,
	"tv":          models.ItemTypeTVShow,
	"series":      models.ItemTypeTVShow,
	"tmdb-tv":     models.ItemTypeTVShow,
	"tmdb-series": models.ItemTypeTVShow,

	"tv-season":   models.ItemTypeTVSeason,
	"season":      models.ItemTypeTVSeason,
	"tmdb-season": models.ItemTypeTVSeason,

	"tv-episode":   models.ItemTypeTVEpisode,
	"episode":      models.ItemTypeTVEpisode,
	"tmdb-episode": models.ItemTypeTVEpisode,

	"anime-series":   models.ItemTypeAnimeSeries,
	"anilist-series": models.ItemTypeAnimeSeries,

	"anime-movie":   models.ItemTypeAnimeMovie,
	"anilist-movie": models.ItemTypeAnimeMovie,

	"anime-episode":   models.ItemTypeAnimeEpisode,
	"anilist-episode": models.ItemTypeAnimeEpisode,
}

// RawItem is an item descriptor as it arrives from a client
type RawItem struct {
	ItemType      string          `json:"item_type" validate:"required"`
	ItemID        json.RawMessage `json:"item_id" validate:"required"`
	SeasonNumber  *int            `json:"season_number" validate:"omitempty,gte=0"`
	EpisodeNumber *int            `json:"episode_number" validate:"omitempty,gte=0"`
}

// Key normalizes the descriptor
func (r RawItem) Key() (models.WatchKey, error) {
	return Normalize(r.ItemType, r.ItemID, r.SeasonNumber, r.EpisodeNumber)
}

// CompositeKey renders the descriptor the way response maps are keyed,
// echoing the type string the client sent.
func (r RawItem) CompositeKey(key models.WatchKey) string {
	return CompositeKey(strings.TrimSpace(r.ItemType), key.ItemID, key.Season, key.Episode)
}

// Normalize validates a raw descriptor and returns its canonical key.
// rawID may be a string, a JSON number, an integer, a float64 or a
// json.RawMessage holding either a string or a number.
func Normalize(rawType string, rawID any, season, episode *int) (models.WatchKey, error) {
	rawType = strings.TrimSpace(rawType)
	if rawType == "" {
		return models.WatchKey{}, invalidField("item_type", "is required")
	}

	id, err := ItemIDString(rawID)
	if err != nil {
		return models.WatchKey{}, err
	}

	s, err := sentinel("season_number", season)
	if err != nil {
		return models.WatchKey{}, err
	}
	e, err := sentinel("episode_number", episode)
	if err != nil {
		return models.WatchKey{}, err
	}

	itemType, err := CanonicalType(rawType, s, e)
	if err != nil {
		return models.WatchKey{}, err
	}

	return models.WatchKey{Type: itemType, ItemID: id, Season: s, Episode: e}, nil
}

// CanonicalType resolves a client type string. The legacy anime type is
// classified by whether a season or episode is present.
func CanonicalType(rawType string, season, episode int) (models.ItemType, error) {
	t := strings.ToLower(strings.TrimSpace(rawType))
	if t == string(models.ItemTypeLegacyAnime) {
		return classifyLegacy(season, episode), nil
	}
	canonical, ok := aliases[t]
	if !ok {
		return "", invalidField("item_type", fmt.Sprintf("unknown item type %q", rawType))
	}
	return canonical, nil
}

// ItemIDString coerces a raw item id to its stored text form
func ItemIDString(rawID any) (string, error) {
	switch v := rawID.(type) {
	case nil:
		return "", invalidField("item_id", "is required")
	case string:
		return nonEmptyID(v)
	case json.Number:
		return numberID(string(v))
	case json.RawMessage:
		return rawMessageID(v)
	case []byte:
		return rawMessageID(v)
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return formatFloat(v)
	default:
		return "", invalidField("item_id", "must be a string or a number")
	}
}

// CompositeKey builds the response map key: type:id with :s{n} and :e{n}
// appended only when nonzero.
func CompositeKey(itemType, itemID string, season, episode int) string {
	var b strings.Builder
	b.WriteString(itemType)
	b.WriteByte(':')
	b.WriteString(itemID)
	if season != 0 {
		fmt.Fprintf(&b, ":s%d", season)
	}
	if episode != 0 {
		fmt.Fprintf(&b, ":e%d", episode)
	}
	return b.String()
}

// Reclassify returns the canonical type of a stored row
func Reclassify(rec models.WatchRecord) models.ItemType {
	if rec.ItemType == models.ItemTypeLegacyAnime {
		return classifyLegacy(rec.SeasonNumber, rec.EpisodeNumber)
	}
	return rec.ItemType
}

// ReclassifyAll rewrites legacy rows in place and returns the slice
func ReclassifyAll(rows []models.WatchRecord) []models.WatchRecord {
	for i := range rows {
		rows[i].ItemType = Reclassify(rows[i])
	}
	return rows
}

// HasLegacyTwin reports whether a legacy anime row with the same id, season
// and episode would read back as key.
func HasLegacyTwin(key models.WatchKey) bool {
	switch key.Type {
	case models.ItemTypeAnimeMovie, models.ItemTypeAnimeSeries:
		return classifyLegacy(key.Season, key.Episode) == key.Type
	default:
		return false
	}
}

func classifyLegacy(season, episode int) models.ItemType {
	if season != 0 || episode != 0 {
		return models.ItemTypeAnimeSeries
	}
	return models.ItemTypeAnimeMovie
}

func sentinel(field string, v *int) (int, error) {
	if v == nil {
		return 0, nil
	}
	if *v < 0 {
		return 0, invalidField(field, "must not be negative")
	}
	return *v, nil
}

func rawMessageID(raw []byte) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", invalidField("item_id", "is required")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", invalidField("item_id", "is not a valid string")
		}
		return nonEmptyID(s)
	}
	return numberID(string(raw))
}

func numberID(text string) (string, error) {
	if _, err := strconv.ParseInt(text, 10, 64); err == nil {
		return text, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return "", invalidField("item_id", "must be a string or a number")
	}
	return formatFloat(f)
}

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", invalidField("item_id", "must be a finite number")
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func nonEmptyID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalidField("item_id", "is required")
	}
	return s, nil
}

func invalidField(field, message string) *models.ValidationError {
	return &models.ValidationError{
		Message: "invalid item",
		Fields:  map[string]string{field: message},
	}
}
