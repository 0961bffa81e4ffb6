package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Seeker220/letswatch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTMDB(t *testing.T, handler http.HandlerFunc, retries uint64) *TMDBService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewTMDBService("test-key", server.URL, ClientOptions{Retries: retries})
}

func TestTMDBService_LookupMovie(t *testing.T) {
	tmdb := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/550", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{"id":550,"title":"Fight Club","release_date":"1999-10-15","poster_path":"/pB8BM7pdSp6B6Ih7QZ4DrQ3PmJK.jpg"}`))
	}, 0)

	meta, err := tmdb.Lookup(context.Background(), models.KindMovie, "550")
	require.NoError(t, err)

	assert.Equal(t, "Fight Club", meta.Title)
	assert.Equal(t, "/pB8BM7pdSp6B6Ih7QZ4DrQ3PmJK.jpg", meta.Image)
	assert.Equal(t, 1999, meta.Year)
}

func TestTMDBService_LookupTV(t *testing.T) {
	tmdb := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tv/1399", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":1399,"name":"Game of Thrones","first_air_date":"2011-04-17","poster_path":"/got.jpg"}`))
	}, 0)

	meta, err := tmdb.Lookup(context.Background(), models.KindTV, "1399")
	require.NoError(t, err)

	assert.Equal(t, "Game of Thrones", meta.Title)
	assert.Equal(t, 2011, meta.Year)
}

func TestTMDBService_NotFoundIsProviderError(t *testing.T) {
	var calls int32
	tmdb := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}, 2)

	_, err := tmdb.Lookup(context.Background(), models.KindMovie, "0")
	require.Error(t, err)

	var statusErr *StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.True(t, errors.Is(err, models.ErrProvider))
	// Client errors are not retried
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTMDBService_RetriesServerErrors(t *testing.T) {
	var calls int32
	tmdb := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":550,"title":"Fight Club","poster_path":"/p.jpg"}`))
	}, 1)

	meta, err := tmdb.Lookup(context.Background(), models.KindMovie, "550")
	require.NoError(t, err)
	assert.Equal(t, "Fight Club", meta.Title)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTMDBService_MalformedPayload(t *testing.T) {
	tmdb := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":`))
	}, 0)

	_, err := tmdb.Lookup(context.Background(), models.KindMovie, "550")
	assert.True(t, errors.Is(err, models.ErrProvider))
}

func TestTMDBService_SearchPassThrough(t *testing.T) {
	tmdb := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/tv", r.URL.Path)
		assert.Equal(t, "dark", r.URL.Query().Get("query"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"page":2,"results":[{"id":70523}]}`))
	}, 0)

	raw, err := tmdb.SearchSeries(context.Background(), "dark", 2)
	require.NoError(t, err)
	assert.JSONEq(t, `{"page":2,"results":[{"id":70523}]}`, string(raw))
}

func TestTMDBService_SeasonEpisodes(t *testing.T) {
	tmdb := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tv/1399/season/3", r.URL.Path)
		_, _ = w.Write([]byte(`{"season_number":3,"episodes":[{"episode_number":1}]}`))
	}, 0)

	raw, err := tmdb.SeasonEpisodes(context.Background(), "1399", 3)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"episodes"`)
}

func TestTMDBService_IMDBID(t *testing.T) {
	tmdb := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movie/550/external_ids":
			_, _ = w.Write([]byte(`{"imdb_id":"tt0137523"}`))
		case "/tv/1399/external_ids":
			_, _ = w.Write([]byte(`{"imdb_id":null}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, 0)

	id, err := tmdb.IMDBID(context.Background(), models.KindMovie, "550")
	require.NoError(t, err)
	assert.Equal(t, "tt0137523", id)

	id, err = tmdb.IMDBID(context.Background(), models.KindTV, "1399")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestTMDBService_LookupUnsupportedKind(t *testing.T) {
	tmdb := NewTMDBService("k", "http://127.0.0.1:0", ClientOptions{})
	_, err := tmdb.Lookup(context.Background(), models.KindAnime, "1")
	assert.Error(t, err)
}
