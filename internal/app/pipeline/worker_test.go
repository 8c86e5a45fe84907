package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"app/db"
	"app/internal/app/pipeline"
	"app/pkg/audio"
	"app/pkg/tts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider writes a real half-second WAV so the worker's duration
// read-back goes through the same decode path as production.
type fakeProvider struct {
	mu    sync.Mutex
	calls []string
}

func (p *fakeProvider) Voices(ctx context.Context, language string) []string {
	return []string{"test-voice"}
}

func (p *fakeProvider) Languages(ctx context.Context) []string {
	return []string{"en"}
}

func (p *fakeProvider) Synthesize(ctx context.Context, req *tts.SynthesisRequest) error {
	p.mu.Lock()
	p.calls = append(p.calls, req.Text)
	p.mu.Unlock()

	if strings.Contains(req.Text, "fail") {
		return errors.New("backend exploded")
	}

	samples := make([]float32, 12000)
	for i := range samples {
		samples[i] = 0.25 * float32(math.Sin(float64(i)/20))
	}

	return audio.WriteWav(req.OutputPath, &audio.Clip{Samples: samples, SampleRate: 24000})
}

func newTestStore(t *testing.T) *db.DB {
	t.Helper()

	store, err := db.New(context.Background(), &db.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func submitConversion(t *testing.T, store *db.DB, queue *pipeline.Queue, staticDir, text, provider string) string {
	t.Helper()

	submitter := pipeline.NewSubmitter(testLogger(), store, queue, staticDir)

	id, err := submitter.Submit(context.Background(), &pipeline.SubmitRequest{
		Title:    "Test",
		Text:     text,
		Provider: provider,
		Voice:    "test-voice",
		Language: "en",
	})
	require.NoError(t, err)

	return id
}

func TestWorkerProcessesJob(t *testing.T) {
	store := newTestStore(t)
	staticDir := t.TempDir()
	ctx := context.Background()

	provider := &fakeProvider{}
	registry := tts.NewRegistry(tts.Entry{ID: "fake", Name: "Fake", Provider: provider})

	queue := pipeline.NewQueue()
	id := submitConversion(t, store, queue, staticDir, "One. Two. Three.", "fake")
	queue.Close()

	worker := pipeline.NewWorker(testLogger(), queue, store, registry)
	worker.Run(ctx)

	conv, err := store.GetConversionWithChunks(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, db.StatusDone, conv.Status)
	assert.Equal(t, 3, conv.ProcessedChunks)
	assert.InDelta(t, 1.5, conv.TotalDuration, 0.05)

	require.Len(t, conv.Chunks, 3)
	for seq, chunk := range conv.Chunks {
		assert.Equal(t, db.ChunkDone, chunk.Status)
		assert.Equal(t, fmt.Sprintf("jobs/%s/part_%d.wav", id, seq), chunk.AudioFile)
		assert.InDelta(t, 0.5, chunk.Duration, 0.05)

		_, statErr := os.Stat(filepath.Join(staticDir, filepath.FromSlash(chunk.AudioFile)))
		assert.NoError(t, statErr)
	}

	// Synthesis happens in seq num order.
	assert.Equal(t, []string{"One.", "Two.", "Three."}, provider.calls)
}

func TestWorkerChunkFailureContinues(t *testing.T) {
	store := newTestStore(t)
	staticDir := t.TempDir()
	ctx := context.Background()

	registry := tts.NewRegistry(tts.Entry{ID: "fake", Name: "Fake", Provider: &fakeProvider{}})

	queue := pipeline.NewQueue()
	id := submitConversion(t, store, queue, staticDir, "One. fail here. Three.", "fake")
	queue.Close()

	pipeline.NewWorker(testLogger(), queue, store, registry).Run(ctx)

	conv, err := store.GetConversionWithChunks(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, db.StatusProcessing, conv.Status)
	assert.Equal(t, 2, conv.ProcessedChunks)

	assert.Equal(t, db.ChunkDone, conv.Chunks[0].Status)
	assert.Equal(t, db.ChunkError, conv.Chunks[1].Status)
	assert.Empty(t, conv.Chunks[1].AudioFile)
	assert.Zero(t, conv.Chunks[1].Duration)
	assert.Equal(t, db.ChunkDone, conv.Chunks[2].Status)
}

func TestWorkerUnknownProviderLeavesChunksPending(t *testing.T) {
	store := newTestStore(t)
	staticDir := t.TempDir()
	ctx := context.Background()

	registry := tts.NewRegistry(tts.Entry{ID: "fake", Name: "Fake", Provider: &fakeProvider{}})

	queue := pipeline.NewQueue()
	id := submitConversion(t, store, queue, staticDir, "One. Two.", "nope")
	queue.Close()

	pipeline.NewWorker(testLogger(), queue, store, registry).Run(ctx)

	conv, err := store.GetConversionWithChunks(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, db.StatusQueued, conv.Status)
	assert.Equal(t, 0, conv.ProcessedChunks)
	for _, chunk := range conv.Chunks {
		assert.Equal(t, db.ChunkPending, chunk.Status)
	}
}

func TestWorkerSurvivesBadJobThenProcessesNext(t *testing.T) {
	store := newTestStore(t)
	staticDir := t.TempDir()
	ctx := context.Background()

	registry := tts.NewRegistry(tts.Entry{ID: "fake", Name: "Fake", Provider: &fakeProvider{}})

	queue := pipeline.NewQueue()
	bad := submitConversion(t, store, queue, staticDir, "Doomed.", "nope")
	good := submitConversion(t, store, queue, staticDir, "Fine.", "fake")
	queue.Close()

	pipeline.NewWorker(testLogger(), queue, store, registry).Run(ctx)

	badConv, err := store.GetConversion(ctx, bad)
	require.NoError(t, err)
	assert.Equal(t, db.StatusQueued, badConv.Status)

	goodConv, err := store.GetConversion(ctx, good)
	require.NoError(t, err)
	assert.Equal(t, db.StatusDone, goodConv.Status)
}

func TestWorkerWritesAfterDeleteAreNoops(t *testing.T) {
	store := newTestStore(t)
	staticDir := t.TempDir()
	ctx := context.Background()

	registry := tts.NewRegistry(tts.Entry{ID: "fake", Name: "Fake", Provider: &fakeProvider{}})

	queue := pipeline.NewQueue()
	id := submitConversion(t, store, queue, staticDir, "One. Two.", "fake")
	queue.Close()

	// Conversion disappears while its job is still queued.
	require.NoError(t, store.DeleteConversion(ctx, id))

	pipeline.NewWorker(testLogger(), queue, store, registry).Run(ctx)

	_, err := store.GetConversion(ctx, id)
	assert.Equal(t, db.ErrCodeNoRows, db.ErrCode(err))
}

func TestSubmitEmptyText(t *testing.T) {
	store := newTestStore(t)

	submitter := pipeline.NewSubmitter(testLogger(), store, pipeline.NewQueue(), t.TempDir())

	_, err := submitter.Submit(context.Background(), &pipeline.SubmitRequest{Text: "   \n  "})
	assert.Error(t, err)
}

func TestEstimateDuration(t *testing.T) {
	assert.InDelta(t, 2.0, pipeline.EstimateDuration("one two three four five"), 1e-9)
	assert.Zero(t, pipeline.EstimateDuration(""))
}
