package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Seeker220/letswatch/models"
)

// TMDBService handles interactions with The Movie Database API
type TMDBService struct {
	apiKey  string
	baseURL string
	api     *apiClient
}

// TMDBTitle is the part of a TMDB movie or TV response the dashboard uses.
// Movies fill Title and ReleaseDate, shows fill Name and FirstAirDate.
type TMDBTitle struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   string  `json:"poster_path"`
	VoteAverage  float64 `json:"vote_average"`
}

// ExternalIDs contains external IDs for a movie or show
type ExternalIDs struct {
	IMDBID string `json:"imdb_id"`
}

// NewTMDBService creates a new TMDB service instance
func NewTMDBService(apiKey, baseURL string, opts ClientOptions) *TMDBService {
	return &TMDBService{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		api:     newAPIClient("tmdb", opts),
	}
}

// Name identifies the provider in logs and metrics
func (t *TMDBService) Name() string {
	return "tmdb"
}

// GetMovie fetches movie details from TMDB by ID
func (t *TMDBService) GetMovie(ctx context.Context, tmdbID string) (*TMDBTitle, error) {
	var title TMDBTitle
	if err := t.get(ctx, "/movie/"+url.PathEscape(tmdbID), nil, &title); err != nil {
		return nil, fmt.Errorf("failed to fetch movie %s from TMDB: %w", tmdbID, err)
	}
	return &title, nil
}

// GetTV fetches show details from TMDB by ID
func (t *TMDBService) GetTV(ctx context.Context, tmdbID string) (*TMDBTitle, error) {
	var title TMDBTitle
	if err := t.get(ctx, "/tv/"+url.PathEscape(tmdbID), nil, &title); err != nil {
		return nil, fmt.Errorf("failed to fetch show %s from TMDB: %w", tmdbID, err)
	}
	return &title, nil
}

// Lookup returns display metadata for a movie or a show. Seasons and
// episodes are looked up through their parent show.
func (t *TMDBService) Lookup(ctx context.Context, kind models.MediaKind, id string) (models.ExternalMetadata, error) {
	var (
		title *TMDBTitle
		err   error
	)
	switch kind {
	case models.KindMovie:
		title, err = t.GetMovie(ctx, id)
	case models.KindTV:
		title, err = t.GetTV(ctx, id)
	default:
		return models.ExternalMetadata{}, fmt.Errorf("TMDB cannot look up %q items", kind)
	}
	if err != nil {
		return models.ExternalMetadata{}, err
	}
	return title.Metadata(), nil
}

// Metadata converts the response into display metadata
func (m TMDBTitle) Metadata() models.ExternalMetadata {
	meta := models.ExternalMetadata{
		Title: m.Title,
		Image: m.PosterPath,
	}
	if meta.Title == "" {
		meta.Title = m.Name
	}

	date := m.ReleaseDate
	if date == "" {
		date = m.FirstAirDate
	}
	// Parse release year
	if len(date) >= 4 {
		if year, err := strconv.Atoi(date[:4]); err == nil {
			meta.Year = year
		}
	}
	return meta
}

// SearchMovies proxies a movie search and returns TMDB's response untouched
func (t *TMDBService) SearchMovies(ctx context.Context, query string, page int) (json.RawMessage, error) {
	return t.search(ctx, "/search/movie", query, page)
}

// SearchSeries proxies a TV search and returns TMDB's response untouched
func (t *TMDBService) SearchSeries(ctx context.Context, query string, page int) (json.RawMessage, error) {
	return t.search(ctx, "/search/tv", query, page)
}

func (t *TMDBService) search(ctx context.Context, path, query string, page int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))

	var raw json.RawMessage
	if err := t.get(ctx, path, params, &raw); err != nil {
		return nil, fmt.Errorf("failed to search TMDB: %w", err)
	}
	return raw, nil
}

// SeasonEpisodes returns the season details of a show, episodes included
func (t *TMDBService) SeasonEpisodes(ctx context.Context, tmdbID string, season int) (json.RawMessage, error) {
	path := fmt.Sprintf("/tv/%s/season/%d", url.PathEscape(tmdbID), season)

	var raw json.RawMessage
	if err := t.get(ctx, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch season %d of %s from TMDB: %w", season, tmdbID, err)
	}
	return raw, nil
}

// IMDBID resolves the IMDb id of a movie or show. An empty string means
// TMDB knows no IMDb id for it.
func (t *TMDBService) IMDBID(ctx context.Context, kind models.MediaKind, tmdbID string) (string, error) {
	segment := "tv"
	if kind == models.KindMovie {
		segment = "movie"
	}

	var ids ExternalIDs
	path := fmt.Sprintf("/%s/%s/external_ids", segment, url.PathEscape(tmdbID))
	if err := t.get(ctx, path, nil, &ids); err != nil {
		return "", fmt.Errorf("failed to fetch external ids of %s from TMDB: %w", tmdbID, err)
	}
	return ids.IMDBID, nil
}

func (t *TMDBService) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", t.apiKey)
	return t.api.doRequest(ctx, "GET", t.baseURL+path+"?"+params.Encode(), nil, nil, result)
}
