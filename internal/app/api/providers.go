package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (api *API) listProviders(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, map[string]any{"providers": api.providers.List()})
}

func (api *API) voices(w http.ResponseWriter, r *http.Request) {
	provider, ok := api.providers.Get(chi.URLParam(r, "provider_id"))
	if !ok {
		api.writeError(w, http.StatusNotFound, "unknown provider id")

		return
	}

	voices := provider.Voices(r.Context(), r.URL.Query().Get("language"))

	api.writeJSON(w, map[string]any{"voices": voices})
}

func (api *API) languages(w http.ResponseWriter, r *http.Request) {
	provider, ok := api.providers.Get(chi.URLParam(r, "provider_id"))
	if !ok {
		api.writeError(w, http.StatusNotFound, "unknown provider id")

		return
	}

	api.writeJSON(w, map[string]any{"languages": provider.Languages(r.Context())})
}
