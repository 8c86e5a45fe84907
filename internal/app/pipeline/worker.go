package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"app/db"
	"app/pkg/audio"
	"app/pkg/tts"
)

// Resolver maps a provider id to a backend. Satisfied by *tts.Registry.
type Resolver interface {
	Get(id string) (tts.Provider, bool)
}

// Worker is the single consumer of the job queue. It fully processes one
// job before starting the next; there is no intra-job parallelism. A job
// or chunk failure never stops the dequeue loop.
type Worker struct {
	logger *slog.Logger

	queue     *Queue
	store     *db.DB
	providers Resolver
}

func NewWorker(logger *slog.Logger, queue *Queue, store *db.DB, providers Resolver) *Worker {
	return &Worker{
		logger: logger,

		queue:     queue,
		store:     store,
		providers: providers,
	}
}

// Run drains the queue until it is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, ok := w.queue.Pop()
		if !ok {
			w.logger.Info("job queue closed, worker exiting")

			return
		}

		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *Job) {
	logger := w.logger.With("conversion_id", job.ConversionID, "provider", job.Provider)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panic", "r", r)
		}
	}()

	provider, ok := w.providers.Get(job.Provider)
	if !ok {
		// The whole job fails before any chunk is touched; the conversion
		// is left below done with all chunks pending.
		logger.Error("job failed", "err", fmt.Errorf("%w: %s", tts.ErrProviderNotFound, job.Provider))

		return
	}

	logger.Info("job started", "chunks", len(job.ChunkTexts))

	for seq, text := range job.ChunkTexts {
		w.processChunk(ctx, logger, provider, job, seq, text)
	}

	logger.Info("job finished")
}

func (w *Worker) processChunk(ctx context.Context, logger *slog.Logger, provider tts.Provider, job *Job, seq int, text string) {
	if err := w.store.UpdateChunk(ctx, job.ConversionID, seq, db.ChunkUpdate{Status: db.ChunkProcessing}); err != nil {
		logger.Error("failed to mark chunk processing", "seq_num", seq, "err", err)

		return
	}

	filename := fmt.Sprintf("part_%d.wav", seq)
	outPath := filepath.Join(job.Dir, filename)

	err := provider.Synthesize(ctx, &tts.SynthesisRequest{
		Text:       text,
		Voice:      job.Voice,
		Language:   job.Language,
		OutputPath: outPath,
		Accelerate: job.Accelerate,
	})
	if err != nil {
		logger.Error("chunk synthesis failed", "seq_num", seq, "err", err)

		w.markChunkError(ctx, logger, job.ConversionID, seq)

		return
	}

	seconds, err := audio.FileDuration(outPath)
	if err != nil {
		logger.Error("failed to read chunk duration", "seq_num", seq, "err", err)

		w.markChunkError(ctx, logger, job.ConversionID, seq)

		return
	}

	if err := w.store.UpdateChunk(ctx, job.ConversionID, seq, db.ChunkUpdate{
		Status:    db.ChunkDone,
		AudioFile: path.Join(job.RelDir, filename),
		Duration:  seconds,
	}); err != nil {
		logger.Error("failed to mark chunk done", "seq_num", seq, "err", err)

		return
	}

	metrics.ChunksProcessed.WithLabelValues(string(db.ChunkDone)).Inc()
}

func (w *Worker) markChunkError(ctx context.Context, logger *slog.Logger, conversionID string, seq int) {
	if err := w.store.UpdateChunk(ctx, conversionID, seq, db.ChunkUpdate{Status: db.ChunkError}); err != nil {
		logger.Error("failed to mark chunk error", "seq_num", seq, "err", err)

		return
	}

	metrics.ChunksProcessed.WithLabelValues(string(db.ChunkError)).Inc()
}
