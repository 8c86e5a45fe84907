package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"app/db"
	"app/internal/app/assembler"
	"app/internal/app/pipeline"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"
)

type submitRequest struct {
	Title    string `json:"title"`
	Text     string `json:"text"`
	Voice    string `json:"voice"`
	Language string `json:"language"`
	Provider string `json:"provider"`
	UseCuda  bool   `json:"use_cuda"`
}

type submitResponse struct {
	ConversionID string `json:"conversion_id"`
}

func (api *API) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.writeError(w, http.StatusBadRequest, "invalid json body")

		return
	}

	if req.Title == "" {
		req.Title = "Conversion " + time.Now().Format("2006-01-02 15:04")
	}

	// Canonicalize well-formed language tags; anything else is passed
	// through for the backend to reject.
	if tag, err := language.Parse(req.Language); err == nil {
		req.Language = tag.String()
	}

	id, err := api.submitter.Submit(r.Context(), &pipeline.SubmitRequest{
		Title:      req.Title,
		Text:       req.Text,
		Provider:   req.Provider,
		Voice:      req.Voice,
		Language:   req.Language,
		Accelerate: req.UseCuda,
	})
	if err != nil {
		api.logger.Error("failed to submit conversion", "err", err)

		api.writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	api.writeJSON(w, &submitResponse{ConversionID: id})
}

type conversionSummary struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Status          string  `json:"status"`
	TotalChunks     int     `json:"total_chunks"`
	ProcessedChunks int     `json:"processed_chunks"`
	LastPlayedIndex int     `json:"last_played_index"`
	Speaker         string  `json:"speaker"`
	Language        string  `json:"language"`
	Provider        string  `json:"provider"`
	EstimatedDur    float64 `json:"estimated_duration"`
	TotalDur        float64 `json:"total_duration"`
	CreatedAt       string  `json:"created_at"`
}

func toSummary(conv *db.Conversion) *conversionSummary {
	return &conversionSummary{
		ID:              conv.ID,
		Title:           conv.Title,
		Status:          string(conv.Status),
		TotalChunks:     conv.TotalChunks,
		ProcessedChunks: conv.ProcessedChunks,
		LastPlayedIndex: conv.LastPlayedIndex,
		Speaker:         conv.Speaker,
		Language:        conv.Language,
		Provider:        conv.Provider,
		EstimatedDur:    conv.EstimatedDuration,
		TotalDur:        conv.TotalDuration,
		CreatedAt:       conv.CreatedAt.Format(time.RFC3339),
	}
}

func (api *API) listConversions(w http.ResponseWriter, r *http.Request) {
	conversions, err := api.store.ListConversions(r.Context())
	if err != nil {
		api.logger.Error("failed to list conversions", "err", err)

		api.writeError(w, http.StatusInternalServerError, "failed to list conversions")

		return
	}

	summaries := make([]*conversionSummary, 0, len(conversions))
	for _, conv := range conversions {
		summaries = append(summaries, toSummary(conv))
	}

	api.writeJSON(w, map[string]any{"conversions": summaries})
}

type chunkView struct {
	SeqNum   int      `json:"seq_num"`
	Text     string   `json:"text"`
	Status   string   `json:"status"`
	AudioURL *string  `json:"audio_url"`
	Duration *float64 `json:"duration"`
}

func toChunkView(chunk *db.Chunk) *chunkView {
	view := &chunkView{
		SeqNum: chunk.SeqNum,
		Text:   chunk.Text,
		Status: string(chunk.Status),
	}

	if chunk.Status == db.ChunkDone && chunk.AudioFile != "" {
		url := "/static/" + chunk.AudioFile
		duration := chunk.Duration

		view.AudioURL = &url
		view.Duration = &duration
	}

	return view
}

func (api *API) getConversion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversion_id")

	conv, err := api.store.GetConversionWithChunks(r.Context(), id)
	if err != nil {
		if db.ErrCode(err) == db.ErrCodeNoRows {
			api.writeError(w, http.StatusNotFound, "unknown conversion id")

			return
		}

		api.logger.Error("failed to get conversion", "err", err)

		api.writeError(w, http.StatusInternalServerError, "failed to get conversion")

		return
	}

	chunks := make([]*chunkView, 0, len(conv.Chunks))
	for _, chunk := range conv.Chunks {
		chunks = append(chunks, toChunkView(chunk))
	}

	api.writeJSON(w, map[string]any{
		"conversion": toSummary(conv),
		"text":       conv.Text,
		"chunks":     chunks,
	})
}

type statusResponse struct {
	Status       string       `json:"status"`
	Total        int          `json:"total"`
	Done         int          `json:"done"`
	Progress     float64      `json:"progress"`
	EstimatedDur float64      `json:"estimated_duration"`
	TotalDur     float64      `json:"total_duration"`
	Chunks       []*chunkView `json:"chunks"`
}

func (api *API) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversion_id")

	conv, err := api.store.GetConversionWithChunks(r.Context(), id)
	if err != nil {
		if db.ErrCode(err) == db.ErrCodeNoRows {
			api.writeError(w, http.StatusNotFound, "unknown conversion id")

			return
		}

		api.logger.Error("failed to get conversion status", "err", err)

		api.writeError(w, http.StatusInternalServerError, "failed to get conversion status")

		return
	}

	progress := 0.0
	if conv.TotalChunks > 0 {
		progress = float64(conv.ProcessedChunks) / float64(conv.TotalChunks)
	}

	chunks := make([]*chunkView, 0, len(conv.Chunks))
	for _, chunk := range conv.Chunks {
		chunks = append(chunks, toChunkView(chunk))
	}

	api.writeJSON(w, &statusResponse{
		Status:       string(conv.Status),
		Total:        conv.TotalChunks,
		Done:         conv.ProcessedChunks,
		Progress:     progress,
		EstimatedDur: conv.EstimatedDuration,
		TotalDur:     conv.TotalDuration,
		Chunks:       chunks,
	})
}

func (api *API) generateFull(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversion_id")

	relPath, err := api.assembler.Assemble(r.Context(), id)
	if err != nil {
		var notReady *assembler.NotReadyError
		if errors.As(err, &notReady) {
			api.writeError(w, http.StatusConflict, notReady.Error())

			return
		}

		var missing *assembler.MissingFileError
		if errors.As(err, &missing) {
			api.logger.Error("assembly hit missing chunk file", "conversion_id", id, "err", err)

			api.writeError(w, http.StatusInternalServerError, missing.Error())

			return
		}

		if db.ErrCode(err) == db.ErrCodeNoRows {
			api.writeError(w, http.StatusNotFound, "unknown conversion id")

			return
		}

		api.logger.Error("failed to assemble full audio", "conversion_id", id, "err", err)

		api.writeError(w, http.StatusInternalServerError, "failed to assemble full audio")

		return
	}

	api.writeJSON(w, map[string]string{
		"status":    "ok",
		"audio_url": "/static/" + relPath,
	})
}

type progressRequest struct {
	ConversionID string `json:"conversion_id"`
	Index        *int   `json:"index"`
}

func (api *API) updateProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversionID == "" || req.Index == nil {
		api.writeError(w, http.StatusBadRequest, "missing conversion_id or index")

		return
	}

	if err := api.store.UpdateProgress(r.Context(), req.ConversionID, *req.Index); err != nil {
		api.logger.Error("failed to update progress", "err", err)

		api.writeError(w, http.StatusInternalServerError, "failed to update progress")

		return
	}

	api.writeJSON(w, map[string]string{"status": "ok"})
}

type renameRequest struct {
	ConversionID string `json:"conversion_id"`
	Title        string `json:"title"`
}

func (api *API) rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversionID == "" || req.Title == "" {
		api.writeError(w, http.StatusBadRequest, "missing conversion_id or title")

		return
	}

	if err := api.store.UpdateTitle(r.Context(), req.ConversionID, req.Title); err != nil {
		api.logger.Error("failed to rename conversion", "err", err)

		api.writeError(w, http.StatusInternalServerError, "failed to rename conversion")

		return
	}

	api.writeJSON(w, map[string]string{"status": "ok"})
}

type deleteRequest struct {
	ConversionID string `json:"conversion_id"`
}

func (api *API) deleteConversion(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversionID == "" {
		api.writeError(w, http.StatusBadRequest, "missing conversion_id")

		return
	}

	if err := api.store.DeleteConversion(r.Context(), req.ConversionID); err != nil {
		api.logger.Error("failed to delete conversion", "err", err)

		api.writeError(w, http.StatusInternalServerError, "failed to delete conversion")

		return
	}

	api.writeJSON(w, map[string]string{"status": "ok"})
}

type activeJob struct {
	ID        string  `json:"id"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
}

func (api *API) jobsStatus(w http.ResponseWriter, r *http.Request) {
	conversions, err := api.store.ListConversions(r.Context())
	if err != nil {
		api.logger.Error("failed to list conversions", "err", err)

		api.writeError(w, http.StatusInternalServerError, "failed to list conversions")

		return
	}

	jobs := []*activeJob{}

	for _, conv := range conversions {
		if conv.Status == db.StatusDone {
			continue
		}

		progress := 0.0
		if conv.TotalChunks > 0 {
			progress = float64(conv.ProcessedChunks) / float64(conv.TotalChunks)
		}

		jobs = append(jobs, &activeJob{
			ID:        conv.ID,
			Status:    string(conv.Status),
			Progress:  progress,
			Processed: conv.ProcessedChunks,
			Total:     conv.TotalChunks,
		})
	}

	api.writeJSON(w, map[string]any{"jobs": jobs})
}
