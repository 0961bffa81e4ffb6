package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Seeker220/letswatch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func newTestAniList(t *testing.T, handler func(req graphQLRequest) string) *AniListService {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handler(req)))
	}))
	t.Cleanup(server.Close)
	return NewAniListService(server.URL, ClientOptions{})
}

func TestAniListService_Lookup(t *testing.T) {
	anilist := newTestAniList(t, func(req graphQLRequest) string {
		assert.Equal(t, float64(21), req.Variables["id"])
		return `{"data":{"Media":{"id":21,"idMal":21,"title":{"romaji":"One Piece","english":null},
			"episodes":null,"format":"TV","seasonYear":1999,"coverImage":{"large":"https://img/21.jpg"}}}}`
	})

	meta, err := anilist.Lookup(context.Background(), models.KindAnime, "21")
	require.NoError(t, err)

	assert.Equal(t, "One Piece", meta.Title)
	assert.Equal(t, "https://img/21.jpg", meta.Image)
	assert.Equal(t, 1999, meta.Year)
	assert.Equal(t, "21", meta.MALID)
}

func TestAniListService_LookupBatch(t *testing.T) {
	anilist := newTestAniList(t, func(req graphQLRequest) string {
		assert.ElementsMatch(t, []interface{}{float64(1), float64(2)}, req.Variables["ids"])
		return `{"data":{"Page":{"pageInfo":{"hasNextPage":false},"media":[
			{"id":1,"title":{"romaji":"Cowboy Bebop","english":"Cowboy Bebop"},"coverImage":{"large":"c1"}},
			{"id":2,"title":{"romaji":"Akira"},"coverImage":{"large":"c2"}}]}}}`
	})

	metas, err := anilist.LookupBatch(context.Background(), models.KindAnime, []string{"1", "2", "not-a-number"})
	require.NoError(t, err)

	require.Len(t, metas, 2)
	assert.Equal(t, "Cowboy Bebop", metas["1"].Title)
	assert.Equal(t, "Akira", metas["2"].Title)
	assert.Empty(t, metas["2"].MALID)
}

func TestAniListService_GraphQLErrors(t *testing.T) {
	anilist := newTestAniList(t, func(req graphQLRequest) string {
		return `{"data":null,"errors":[{"message":"Not Found."}]}`
	})

	_, err := anilist.Lookup(context.Background(), models.KindAnime, "999999")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrProvider))
	assert.Contains(t, err.Error(), "Not Found.")
}

func TestAniListService_SearchWalksPages(t *testing.T) {
	anilist := newTestAniList(t, func(req graphQLRequest) string {
		page := int(req.Variables["page"].(float64))
		assert.Equal(t, "bebop", req.Variables["search"])
		assert.Equal(t, float64(50), req.Variables["perPage"])
		return fmt.Sprintf(`{"data":{"Page":{"pageInfo":{"currentPage":%d,"hasNextPage":%t},
			"media":[{"id":%d,"title":{"romaji":"r%d"}}]}}}`, page, page < 3, page, page)
	})

	all, err := anilist.Search(context.Background(), "bebop")
	require.NoError(t, err)

	require.Len(t, all, 3)
	assert.Equal(t, 3, all[2].ID)
}

func TestAniListMedia_IsMovie(t *testing.T) {
	assert.True(t, AniListMedia{Episodes: intPtr(1), Format: "TV"}.IsMovie())
	assert.False(t, AniListMedia{Episodes: intPtr(12), Format: "MOVIE"}.IsMovie())
	assert.True(t, AniListMedia{Format: "MOVIE"}.IsMovie())
	assert.True(t, AniListMedia{Format: "OVA"}.IsMovie())
	assert.False(t, AniListMedia{Format: "TV"}.IsMovie())
	assert.False(t, AniListMedia{Format: "TV_SHORT"}.IsMovie())
}

func TestSplitAnime(t *testing.T) {
	var all []AniListMedia
	for i := 0; i < 45; i++ {
		all = append(all, AniListMedia{ID: i, Episodes: intPtr(1)})
	}
	for i := 100; i < 105; i++ {
		all = append(all, AniListMedia{ID: i, Format: "TV"})
	}

	page := SplitAnime(all, 3, 1, 20)

	assert.Len(t, page.AnimeMovies, 5)
	assert.Equal(t, 40, page.AnimeMovies[0].ID)
	assert.Len(t, page.AnimeSeries, 5)
	assert.Equal(t, PageCounts{Movies: 3, Series: 1}, page.TotalPages)
	assert.Equal(t, PageCounts{Movies: 3, Series: 1}, page.Page)

	empty := SplitAnime(all, 9, 2, 20)
	assert.Empty(t, empty.AnimeMovies)
	assert.NotNil(t, empty.AnimeSeries)
}
