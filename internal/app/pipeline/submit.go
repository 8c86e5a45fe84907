package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"app/db"
	"app/pkg/chunker"
)

// Avg reading speed ~150 words per minute.
const wordsPerSecond = 2.5

// EstimateDuration is the word-count heuristic fixed at submission time.
// Actual total duration is derived later from synthesized chunks.
func EstimateDuration(text string) float64 {
	return float64(len(strings.Fields(text))) / wordsPerSecond
}

type SubmitRequest struct {
	Title string
	Text  string

	Provider string
	Voice    string
	Language string

	Accelerate bool
}

// Submitter is the submission boundary: it chunks the text, persists the
// conversion with its chunks, and enqueues the job. It returns before any
// synthesis happens.
type Submitter struct {
	logger *slog.Logger

	store     *db.DB
	queue     *Queue
	staticDir string
}

func NewSubmitter(logger *slog.Logger, store *db.DB, queue *Queue, staticDir string) *Submitter {
	return &Submitter{
		logger: logger,

		store:     store,
		queue:     queue,
		staticDir: staticDir,
	}
}

func (s *Submitter) Submit(ctx context.Context, req *SubmitRequest) (string, error) {
	chunks := chunker.Split(req.Text)
	if len(chunks) == 0 {
		return "", fmt.Errorf("text is empty")
	}

	id, err := s.store.CreateConversion(ctx, &db.CreateConversionParams{
		Title:             req.Title,
		Text:              req.Text,
		ChunkTexts:        chunks,
		Speaker:           req.Voice,
		Language:          req.Language,
		Provider:          req.Provider,
		EstimatedDuration: EstimateDuration(req.Text),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create conversion: %w", err)
	}

	relDir := path.Join("jobs", id)
	jobDir := filepath.Join(s.staticDir, "jobs", id)

	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create job dir: %w", err)
	}

	s.queue.Push(&Job{
		ConversionID: id,
		ChunkTexts:   chunks,

		Provider: req.Provider,
		Voice:    req.Voice,
		Language: req.Language,

		Accelerate: req.Accelerate,

		Dir:    jobDir,
		RelDir: relDir,
	})

	s.logger.Info("conversion submitted", "conversion_id", id, "chunks", len(chunks), "provider", req.Provider)

	return id, nil
}
