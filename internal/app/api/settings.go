package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (api *API) getSettings(w http.ResponseWriter, r *http.Request) {
	values, err := api.store.Settings(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		api.logger.Error("failed to get settings", "err", err)

		api.writeError(w, http.StatusInternalServerError, "failed to get settings")

		return
	}

	api.writeJSON(w, map[string]any{"settings": values})
}

func (api *API) setSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		api.writeError(w, http.StatusBadRequest, "invalid json body")

		return
	}

	if err := api.store.SetSettings(r.Context(), chi.URLParam(r, "category"), values); err != nil {
		api.logger.Error("failed to set settings", "err", err)

		api.writeError(w, http.StatusInternalServerError, "failed to set settings")

		return
	}

	api.writeJSON(w, map[string]string{"status": "ok"})
}
