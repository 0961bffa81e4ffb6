package identity

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Seeker220/letswatch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestNormalize_Aliases(t *testing.T) {
	tests := []struct {
		raw  string
		want models.ItemType
	}{
		{"movie", models.ItemTypeMovie},
		{"tmdb-movie", models.ItemTypeMovie},
		{"tv", models.ItemTypeTVShow},
		{"series", models.ItemTypeTVShow},
		{"tmdb-tv", models.ItemTypeTVShow},
		{"tmdb-series", models.ItemTypeTVShow},
		{"season", models.ItemTypeTVSeason},
		{"tmdb-episode", models.ItemTypeTVEpisode},
		{"anilist-series", models.ItemTypeAnimeSeries},
		{"anilist-movie", models.ItemTypeAnimeMovie},
		{"anime-episode", models.ItemTypeAnimeEpisode},
		{"TMDB-Movie", models.ItemTypeMovie},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			key, err := Normalize(tt.raw, "1", nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, key.Type)
		})
	}
}

func TestNormalize_UnknownType(t *testing.T) {
	_, err := Normalize("podcast", "1", nil, nil)

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "item_type")
}

func TestNormalize_MissingFields(t *testing.T) {
	_, err := Normalize("", "1", nil, nil)
	var verr *models.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = Normalize("movie", nil, nil, nil)
	assert.True(t, errors.As(err, &verr))

	_, err = Normalize("movie", json.RawMessage(`null`), nil, nil)
	assert.True(t, errors.As(err, &verr))

	_, err = Normalize("movie", "   ", nil, nil)
	assert.True(t, errors.As(err, &verr))
}

func TestNormalize_ItemIDCoercion(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"string", "550", "550"},
		{"int", 550, "550"},
		{"float", 550.0, "550"},
		{"json number", json.Number("550"), "550"},
		{"raw number", json.RawMessage(`550`), "550"},
		{"raw float", json.RawMessage(`550.0`), "550"},
		{"raw string", json.RawMessage(`"tt0137523"`), "tt0137523"},
		{"fractional", 1.5, "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := Normalize("movie", tt.raw, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, key.ItemID)
		})
	}
}

func TestNormalize_SentinelEquivalence(t *testing.T) {
	absent, err := Normalize("tv-show", "1399", nil, nil)
	require.NoError(t, err)
	zero, err := Normalize("tv-show", "1399", intPtr(0), intPtr(0))
	require.NoError(t, err)

	assert.Equal(t, absent, zero)
	assert.Equal(t, 0, absent.Season)
	assert.Equal(t, 0, absent.Episode)
}

func TestNormalize_NegativeNumbers(t *testing.T) {
	_, err := Normalize("tv-episode", "1399", intPtr(-1), intPtr(2))

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "season_number")
}

func TestNormalize_LegacyAnime(t *testing.T) {
	movie, err := Normalize("anime", "21", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ItemTypeAnimeMovie, movie.Type)

	series, err := Normalize("anime", "21", intPtr(1), intPtr(900))
	require.NoError(t, err)
	assert.Equal(t, models.ItemTypeAnimeSeries, series.Type)
}

func TestCompositeKey(t *testing.T) {
	assert.Equal(t, "tmdb-movie:550", CompositeKey("tmdb-movie", "550", 0, 0))
	assert.Equal(t, "tv-season:1399:s2", CompositeKey("tv-season", "1399", 2, 0))
	assert.Equal(t, "tv-episode:1399:s2:e5", CompositeKey("tv-episode", "1399", 2, 5))
	assert.Equal(t, "anime-episode:21:e900", CompositeKey("anime-episode", "21", 0, 900))
}

func TestRawItem_CompositeKeyEchoesClientType(t *testing.T) {
	item := RawItem{ItemType: "tmdb-movie", ItemID: json.RawMessage(`550`)}

	key, err := item.Key()
	require.NoError(t, err)

	assert.Equal(t, models.ItemTypeMovie, key.Type)
	assert.Equal(t, "tmdb-movie:550", item.CompositeKey(key))
}

func TestReclassify(t *testing.T) {
	assert.Equal(t, models.ItemTypeAnimeMovie, Reclassify(models.WatchRecord{ItemType: models.ItemTypeLegacyAnime}))
	assert.Equal(t, models.ItemTypeAnimeSeries, Reclassify(models.WatchRecord{ItemType: models.ItemTypeLegacyAnime, EpisodeNumber: 3}))
	assert.Equal(t, models.ItemTypeTVShow, Reclassify(models.WatchRecord{ItemType: models.ItemTypeTVShow}))
}

func TestHasLegacyTwin(t *testing.T) {
	assert.True(t, HasLegacyTwin(models.WatchKey{Type: models.ItemTypeAnimeMovie, ItemID: "1"}))
	assert.False(t, HasLegacyTwin(models.WatchKey{Type: models.ItemTypeAnimeMovie, ItemID: "1", Episode: 1}))
	assert.True(t, HasLegacyTwin(models.WatchKey{Type: models.ItemTypeAnimeSeries, ItemID: "1", Season: 1}))
	assert.False(t, HasLegacyTwin(models.WatchKey{Type: models.ItemTypeAnimeEpisode, ItemID: "1", Episode: 1}))
	assert.False(t, HasLegacyTwin(models.WatchKey{Type: models.ItemTypeMovie, ItemID: "1"}))
}
