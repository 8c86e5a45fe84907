// Package api is the HTTP serving layer. It only enqueues jobs and reads
// persisted state; synthesis is the worker's business.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"app/db"
	"app/internal/app/assembler"
	"app/internal/app/pipeline"
	"app/pkg/tts"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogchi "github.com/samber/slog-chi"
)

type Config struct {
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

type API struct {
	logger *slog.Logger

	cfg *Config

	store     *db.DB
	providers *tts.Registry
	submitter *pipeline.Submitter
	assembler *assembler.Assembler

	staticDir string
}

func NewAPI(cfg *Config, logger *slog.Logger, store *db.DB, providers *tts.Registry,
	submitter *pipeline.Submitter, asm *assembler.Assembler, staticDir string) *API {
	return &API{
		cfg: cfg,

		logger: logger,

		store:     store,
		providers: providers,
		submitter: submitter,
		assembler: asm,

		staticDir: staticDir,
	}
}

func (api *API) NewRouter() *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(slogchi.New(api.logger))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.StripSlashes)

	router.Use(middleware.Recoverer)

	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(router chi.Router) {
		router.Post("/conversions", api.submit)
		router.Get("/conversions", api.listConversions)
		router.Get("/conversions/{conversion_id}", api.getConversion)
		router.Get("/conversions/{conversion_id}/status", api.status)
		router.Post("/conversions/{conversion_id}/full_audio", api.generateFull)

		router.Post("/progress", api.updateProgress)
		router.Post("/rename", api.rename)
		router.Post("/delete", api.deleteConversion)
		router.Get("/jobs/status", api.jobsStatus)

		router.Get("/providers", api.listProviders)
		router.Get("/providers/{provider_id}/voices", api.voices)
		router.Get("/providers/{provider_id}/languages", api.languages)

		router.Get("/settings/{category}", api.getSettings)
		router.Post("/settings/{category}", api.setSettings)
	})

	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(api.staticDir))))

	return router
}

func (api *API) writeJSON(w http.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		api.logger.Error("failed to marshal response", "err", err)

		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to marshal response"}`))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (api *API) writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	data, _ := json.Marshal(map[string]string{"error": msg})
	_, _ = w.Write(data)
}
