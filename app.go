package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Seeker220/letswatch/auth"
	"github.com/Seeker220/letswatch/dashboard"
	"github.com/Seeker220/letswatch/logging"
	"github.com/Seeker220/letswatch/metrics"
	"github.com/Seeker220/letswatch/models"
	"github.com/Seeker220/letswatch/repository"
	"github.com/Seeker220/letswatch/services"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// App represents the application with its dependencies
type App struct {
	watchRepo       *repository.WatchRepository
	dashboard       *dashboard.Assembler
	tmdbService     *services.TMDBService
	anilistService  *services.AniListService
	malService      *services.MALService
	verifier        *auth.Verifier
	providerTimeout time.Duration
	logger          *logrus.Logger
}

func (app *App) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logging.Middleware(app.logger))

	// Health check and metrics endpoints
	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Catalog pass-through endpoints
	api.HandleFunc("/searchMovies", app.searchMoviesHandler).Methods("GET")
	api.HandleFunc("/searchSeries", app.searchSeriesHandler).Methods("GET")
	api.HandleFunc("/fetchEpisodes", app.fetchEpisodesHandler).Methods("GET")
	api.HandleFunc("/imdb", app.imdbHandler).Methods("GET")
	api.HandleFunc("/searchAnime", app.searchAnimeHandler).Methods("GET")
	api.HandleFunc("/searchAnimeMAL", app.searchAnimeMALHandler).Methods("GET")
	api.HandleFunc("/fetchAnimeEpisodes", app.fetchAnimeEpisodesHandler).Methods("GET")

	// Authenticated endpoints
	private := api.NewRoute().Subrouter()
	private.Use(app.verifier.Middleware)
	private.HandleFunc("/userinfo", app.userInfoHandler).Methods("GET")
	private.HandleFunc("/watched", app.getWatchedHandler).Methods("GET")
	private.HandleFunc("/watched", app.setWatchedHandler).Methods("POST")

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		logrus.Printf("Failed to write response: %v", err)
	}
}

func (app *App) userInfoHandler(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())
	if claims == nil {
		app.writeError(w, r, models.ErrUnauthorized)
		return
	}

	app.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"id":       claims.UserID,
		"username": claims.Username,
		"email":    claims.Email,
	})
}

func (app *App) writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(r.Context(), app.logger).WithError(err).Error("Failed to encode response")
	}
}

// writeError maps an error onto its status code and JSON body
func (app *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.FromContext(r.Context(), app.logger).WithError(err)

	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		body := map[string]interface{}{"error": verr.Message}
		if len(verr.Fields) > 0 {
			body["fields"] = verr.Fields
		}
		app.writeJSON(w, r, http.StatusBadRequest, body)
	case errors.Is(err, models.ErrUnauthorized):
		app.writeJSON(w, r, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	case errors.Is(err, services.ErrMALTokenMissing):
		logger.Error("MyAnimeList is not configured")
		app.writeJSON(w, r, http.StatusInternalServerError, map[string]string{"error": "Missing MAL access token"})
	case errors.Is(err, models.ErrStorageUnavailable):
		logger.Error("Storage unavailable")
		app.writeJSON(w, r, http.StatusInternalServerError, map[string]string{"error": "Storage unavailable"})
	case errors.Is(err, models.ErrProvider):
		logger.Warn("Provider request failed")
		app.writeJSON(w, r, http.StatusBadGateway, map[string]string{"error": "Upstream provider error"})
	default:
		logger.Error("Request failed")
		app.writeJSON(w, r, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}
