package main

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Seeker220/letswatch/models"
	"github.com/Seeker220/letswatch/services"
	"github.com/Seeker220/letswatch/validate"
)

const animePageSize = 20

type searchParams struct {
	Query string `json:"q" validate:"required"`
	Page  int    `json:"page" validate:"gte=1,lte=500"`
}

type episodesParams struct {
	ID     string `json:"id" validate:"required"`
	Season int    `json:"season" validate:"gte=0"`
}

type imdbParams struct {
	Type string `json:"type" validate:"required"`
	ID   string `json:"id" validate:"required"`
}

type animeSearchParams struct {
	Query      string `json:"q" validate:"required"`
	MoviesPage int    `json:"moviesPage" validate:"gte=1"`
	SeriesPage int    `json:"seriesPage" validate:"gte=1"`
}

type animeEpisodesParams struct {
	MALID string `json:"idMal" validate:"required"`
	Page  int    `json:"page" validate:"gte=1"`
}

func (app *App) searchMoviesHandler(w http.ResponseWriter, r *http.Request) {
	app.tmdbSearch(w, r, false)
}

func (app *App) searchSeriesHandler(w http.ResponseWriter, r *http.Request) {
	app.tmdbSearch(w, r, true)
}

func (app *App) tmdbSearch(w http.ResponseWriter, r *http.Request, series bool) {
	q := r.URL.Query()
	page, err := queryInt(q, "page", 1)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	params := searchParams{Query: strings.TrimSpace(q.Get("q")), Page: page}
	if err := validate.Struct(params); err != nil {
		app.writeError(w, r, err)
		return
	}

	ctx, cancel := app.providerContext(r)
	defer cancel()

	search := app.tmdbService.SearchMovies
	if series {
		search = app.tmdbService.SearchSeries
	}
	raw, err := search(ctx, params.Query, params.Page)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, raw)
}

func (app *App) fetchEpisodesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	season, err := queryInt(q, "season", 1)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	params := episodesParams{ID: strings.TrimSpace(q.Get("id")), Season: season}
	if err := validate.Struct(params); err != nil {
		app.writeError(w, r, err)
		return
	}

	ctx, cancel := app.providerContext(r)
	defer cancel()

	raw, err := app.tmdbService.SeasonEpisodes(ctx, params.ID, params.Season)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, raw)
}

func (app *App) imdbHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := imdbParams{Type: strings.TrimSpace(q.Get("type")), ID: strings.TrimSpace(q.Get("id"))}
	if err := validate.Struct(params); err != nil {
		app.writeError(w, r, err)
		return
	}

	kind := models.KindTV
	if params.Type == "movie" {
		kind = models.KindMovie
	}

	ctx, cancel := app.providerContext(r)
	defer cancel()

	imdbID, err := app.tmdbService.IMDBID(ctx, kind, params.ID)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	var body struct {
		IMDBID *string `json:"imdb_id"`
	}
	if imdbID != "" {
		body.IMDBID = &imdbID
	}
	app.writeJSON(w, r, http.StatusOK, body)
}

// searchAnimeHandler fetches every AniList result page, splits the results
// into movies and series and returns the requested page of each.
func (app *App) searchAnimeHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	moviesPage, err := queryInt(q, "moviesPage", 1)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	seriesPage, err := queryInt(q, "seriesPage", 1)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	params := animeSearchParams{Query: strings.TrimSpace(q.Get("q")), MoviesPage: moviesPage, SeriesPage: seriesPage}
	if err := validate.Struct(params); err != nil {
		app.writeError(w, r, err)
		return
	}

	all, err := app.anilistService.Search(r.Context(), params.Query)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	app.writeJSON(w, r, http.StatusOK, services.SplitAnime(all, params.MoviesPage, params.SeriesPage, animePageSize))
}

func (app *App) searchAnimeMALHandler(w http.ResponseWriter, r *http.Request) {
	params := searchParams{Query: strings.TrimSpace(r.URL.Query().Get("q")), Page: 1}
	if err := validate.Struct(params); err != nil {
		app.writeError(w, r, err)
		return
	}

	ctx, cancel := app.providerContext(r)
	defer cancel()

	raw, err := app.malService.Search(ctx, params.Query)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, raw)
}

func (app *App) fetchAnimeEpisodesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := queryInt(q, "page", 1)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	params := animeEpisodesParams{MALID: strings.TrimSpace(q.Get("idMal")), Page: page}
	if err := validate.Struct(params); err != nil {
		app.writeError(w, r, err)
		return
	}

	ctx, cancel := app.providerContext(r)
	defer cancel()

	raw, err := app.malService.Episodes(ctx, params.MALID, params.Page)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, raw)
}

func (app *App) providerContext(r *http.Request) (context.Context, context.CancelFunc) {
	if app.providerTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), app.providerTimeout)
}

func queryInt(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &models.ValidationError{
			Message: "invalid request",
			Fields:  map[string]string{name: "must be an integer"},
		}
	}
	return n, nil
}
