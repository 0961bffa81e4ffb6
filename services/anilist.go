package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Seeker220/letswatch/models"
)

const (
	anilistPerPage = 50
	// anilistMaxPages bounds a search that keeps reporting more pages
	anilistMaxPages = 20
)

const anilistMediaFields = `
	id
	idMal
	title { romaji english }
	episodes
	format
	seasonYear
	coverImage { large }`

var (
	anilistMediaQuery = `query ($id: Int) {
  Media(id: $id, type: ANIME) {` + anilistMediaFields + `
  }
}`

	anilistBatchQuery = `query ($ids: [Int], $page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { hasNextPage }
    media(id_in: $ids, type: ANIME) {` + anilistMediaFields + `
    }
  }
}`

	anilistSearchQuery = `query ($search: String, $page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { currentPage hasNextPage }
    media(search: $search, type: ANIME) {` + anilistMediaFields + `
    }
  }
}`
)

// AniListService handles interactions with the AniList GraphQL API
type AniListService struct {
	endpoint string
	api      *apiClient
}

// AniListTitle holds the title variants of an entry
type AniListTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
}

// AniListCover holds cover image urls
type AniListCover struct {
	Large string `json:"large"`
}

// AniListMedia is one anime entry
type AniListMedia struct {
	ID         int          `json:"id"`
	IDMal      *int         `json:"idMal"`
	Title      AniListTitle `json:"title"`
	Episodes   *int         `json:"episodes"`
	Format     string       `json:"format"`
	SeasonYear *int         `json:"seasonYear"`
	CoverImage AniListCover `json:"coverImage"`
}

// IsMovie classifies an entry: a single episode, or an unknown episode
// count with a format other than TV and TV_SHORT.
func (m AniListMedia) IsMovie() bool {
	if m.Episodes != nil {
		return *m.Episodes == 1
	}
	return m.Format != "TV" && m.Format != "TV_SHORT"
}

// Metadata converts the entry into display metadata. The English title is
// preferred over romaji.
func (m AniListMedia) Metadata() models.ExternalMetadata {
	meta := models.ExternalMetadata{
		Title: m.Title.English,
		Image: m.CoverImage.Large,
	}
	if meta.Title == "" {
		meta.Title = m.Title.Romaji
	}
	if m.SeasonYear != nil {
		meta.Year = *m.SeasonYear
	}
	if m.IDMal != nil && *m.IDMal > 0 {
		meta.MALID = strconv.Itoa(*m.IDMal)
	}
	return meta
}

type anilistPageInfo struct {
	CurrentPage int  `json:"currentPage"`
	HasNextPage bool `json:"hasNextPage"`
}

type anilistPage struct {
	Page struct {
		PageInfo anilistPageInfo `json:"pageInfo"`
		Media    []AniListMedia  `json:"media"`
	} `json:"Page"`
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// NewAniListService creates a new AniList client for endpoint
func NewAniListService(endpoint string, opts ClientOptions) *AniListService {
	return &AniListService{
		endpoint: endpoint,
		api:      newAPIClient("anilist", opts),
	}
}

// Name identifies the provider in logs and metrics
func (a *AniListService) Name() string {
	return "anilist"
}

// Media fetches one entry by AniList id
func (a *AniListService) Media(ctx context.Context, id int) (*AniListMedia, error) {
	var data struct {
		Media *AniListMedia `json:"Media"`
	}
	if err := a.query(ctx, anilistMediaQuery, map[string]interface{}{"id": id}, &data); err != nil {
		return nil, fmt.Errorf("failed to fetch anime %d from AniList: %w", id, err)
	}
	if data.Media == nil {
		return nil, fmt.Errorf("%w: anime %d not found on AniList", models.ErrProvider, id)
	}
	return data.Media, nil
}

// MediaByIDs fetches many entries. Unknown ids are simply missing from the
// result.
func (a *AniListService) MediaByIDs(ctx context.Context, ids []int) ([]AniListMedia, error) {
	var all []AniListMedia
	for start := 0; start < len(ids); start += anilistPerPage {
		end := min(start+anilistPerPage, len(ids))

		var data anilistPage
		vars := map[string]interface{}{
			"ids":     ids[start:end],
			"page":    1,
			"perPage": anilistPerPage,
		}
		if err := a.query(ctx, anilistBatchQuery, vars, &data); err != nil {
			return nil, fmt.Errorf("failed to fetch anime batch from AniList: %w", err)
		}
		all = append(all, data.Page.Media...)
	}
	return all, nil
}

// Search walks every result page for query
func (a *AniListService) Search(ctx context.Context, query string) ([]AniListMedia, error) {
	var all []AniListMedia
	for page := 1; page <= anilistMaxPages; page++ {
		var data anilistPage
		vars := map[string]interface{}{
			"search":  query,
			"page":    page,
			"perPage": anilistPerPage,
		}
		if err := a.query(ctx, anilistSearchQuery, vars, &data); err != nil {
			return nil, fmt.Errorf("failed to search AniList: %w", err)
		}
		all = append(all, data.Page.Media...)
		if !data.Page.PageInfo.HasNextPage {
			break
		}
	}
	return all, nil
}

// Lookup returns display metadata for one anime
func (a *AniListService) Lookup(ctx context.Context, kind models.MediaKind, id string) (models.ExternalMetadata, error) {
	anilistID, err := parseAniListID(kind, id)
	if err != nil {
		return models.ExternalMetadata{}, err
	}
	media, err := a.Media(ctx, anilistID)
	if err != nil {
		return models.ExternalMetadata{}, err
	}
	return media.Metadata(), nil
}

// LookupBatch returns display metadata for many anime in one request. Ids
// AniList does not know, or that are not numeric, are left out.
func (a *AniListService) LookupBatch(ctx context.Context, kind models.MediaKind, ids []string) (map[string]models.ExternalMetadata, error) {
	numeric := make([]int, 0, len(ids))
	for _, id := range ids {
		if n, err := parseAniListID(kind, id); err == nil {
			numeric = append(numeric, n)
		}
	}

	result := make(map[string]models.ExternalMetadata, len(numeric))
	if len(numeric) == 0 {
		return result, nil
	}

	media, err := a.MediaByIDs(ctx, numeric)
	if err != nil {
		return nil, err
	}
	for _, m := range media {
		result[strconv.Itoa(m.ID)] = m.Metadata()
	}
	return result, nil
}

func (a *AniListService) query(ctx context.Context, query string, vars map[string]interface{}, data interface{}) error {
	var resp graphQLResponse
	req := graphQLRequest{Query: query, Variables: vars}
	if err := a.api.doRequest(ctx, "POST", a.endpoint, req, nil, &resp); err != nil {
		return err
	}

	if len(resp.Errors) > 0 {
		messages := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			messages[i] = e.Message
		}
		return fmt.Errorf("%w: AniList: %s", models.ErrProvider, strings.Join(messages, "; "))
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return fmt.Errorf("%w: AniList returned no data", models.ErrProvider)
	}
	if err := json.Unmarshal(resp.Data, data); err != nil {
		return fmt.Errorf("%w: failed to decode AniList data: %v", models.ErrProvider, err)
	}
	return nil
}

func parseAniListID(kind models.MediaKind, id string) (int, error) {
	if kind != models.KindAnime {
		return 0, fmt.Errorf("AniList cannot look up %q items", kind)
	}
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return 0, errors.New("AniList ids are positive integers")
	}
	return n, nil
}

// AnimeSearchPage is one page of a search split into movies and series
type AnimeSearchPage struct {
	AnimeMovies []AniListMedia `json:"animeMovies"`
	AnimeSeries []AniListMedia `json:"animeSeries"`
	TotalPages  PageCounts     `json:"totalPages"`
	Page        PageCounts     `json:"page"`
}

// PageCounts pairs a movies value with a series value
type PageCounts struct {
	Movies int `json:"movies"`
	Series int `json:"series"`
}

// SplitAnime classifies search results and returns the requested page of
// each class.
func SplitAnime(all []AniListMedia, moviesPage, seriesPage, perPage int) AnimeSearchPage {
	movies := make([]AniListMedia, 0)
	series := make([]AniListMedia, 0)
	for _, m := range all {
		if m.IsMovie() {
			movies = append(movies, m)
		} else {
			series = append(series, m)
		}
	}

	return AnimeSearchPage{
		AnimeMovies: paginate(movies, moviesPage, perPage),
		AnimeSeries: paginate(series, seriesPage, perPage),
		TotalPages: PageCounts{
			Movies: (len(movies) + perPage - 1) / perPage,
			Series: (len(series) + perPage - 1) / perPage,
		},
		Page: PageCounts{Movies: moviesPage, Series: seriesPage},
	}
}

func paginate(list []AniListMedia, page, perPage int) []AniListMedia {
	start := (page - 1) * perPage
	if page < 1 || start >= len(list) {
		return []AniListMedia{}
	}
	end := min(start+perPage, len(list))
	return list[start:end]
}
