package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Seeker220/letswatch/auth"
	"github.com/Seeker220/letswatch/identity"
	"github.com/Seeker220/letswatch/models"
	"github.com/Seeker220/letswatch/repository"
	"github.com/Seeker220/letswatch/validate"
)

const maxWatchedBody = 64 << 10

type setWatchedRequest struct {
	identity.RawItem
	State string `json:"state" validate:"required,max=64"`
}

// getWatchedHandler serves the continue-watching dashboard when ?continue
// is true (continue=1) and batch state lookups otherwise.
func (app *App) getWatchedHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUser(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	showDashboard, err := continueFlag(r)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	if showDashboard {
		d, err := app.dashboard.Build(r.Context(), userID)
		if err != nil {
			app.writeError(w, r, err)
			return
		}
		app.writeJSON(w, r, http.StatusOK, d)
		return
	}

	states, err := app.batchStates(r, userID)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, map[string]interface{}{"states": states})
}

func continueFlag(r *http.Request) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("continue"))
	if raw == "" {
		return false, nil
	}
	on, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &models.ValidationError{
			Message: "invalid request",
			Fields:  map[string]string{"continue": "must be a boolean"},
		}
	}
	return on, nil
}

// batchStates resolves ?items=[...] into composite key -> state. Keys
// without a row are omitted.
func (app *App) batchStates(r *http.Request, userID string) (map[string]models.WatchState, error) {
	states := make(map[string]models.WatchState)

	raw := r.URL.Query().Get("items")
	if strings.TrimSpace(raw) == "" {
		return states, nil
	}

	var items []identity.RawItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, models.NewValidationError("Invalid items param")
	}
	if len(items) == 0 {
		return states, nil
	}
	if len(items) > repository.MaxBatchKeys {
		return nil, models.NewValidationError(fmt.Sprintf("at most %d items can be looked up at once", repository.MaxBatchKeys))
	}

	// Several client spellings may share one canonical key
	responseKeys := make(map[models.WatchKey][]string, len(items))
	keys := make([]models.WatchKey, 0, len(items))
	for _, item := range items {
		key, err := item.Key()
		if err != nil {
			return nil, err
		}
		if _, seen := responseKeys[key]; !seen {
			keys = append(keys, key)
		}
		responseKeys[key] = append(responseKeys[key], item.CompositeKey(key))
	}

	records, err := app.watchRepo.BatchGet(r.Context(), userID, keys)
	if err != nil {
		return nil, err
	}

	for key, record := range records {
		for _, composite := range responseKeys[key] {
			states[composite] = record.State
		}
	}
	return states, nil
}

// setWatchedHandler records a state transition. not_watched deletes the row.
func (app *App) setWatchedHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUser(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	var req setWatchedRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWatchedBody)).Decode(&req); err != nil {
		app.writeError(w, r, models.NewValidationError("Invalid JSON body"))
		return
	}
	if err := validate.Struct(req); err != nil {
		app.writeError(w, r, err)
		return
	}

	key, err := req.Key()
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	state := models.WatchState(strings.TrimSpace(req.State))
	if state == "" {
		app.writeError(w, r, &models.ValidationError{Message: "invalid request", Fields: map[string]string{"state": "is required"}})
		return
	}

	row, err := app.watchRepo.SetState(r.Context(), userID, key, state)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	if row == nil {
		app.writeJSON(w, r, http.StatusOK, map[string]interface{}{"ok": true, "deleted": true})
		return
	}
	app.writeJSON(w, r, http.StatusOK, map[string]interface{}{"ok": true, "row": row})
}
