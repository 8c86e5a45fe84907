package assembler_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"app/db"
	"app/internal/app/assembler"
	"app/pkg/audio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
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

func toneClip(rate int, seconds float64) *audio.Clip {
	n := int(float64(rate) * seconds)

	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.25 * float32(math.Sin(float64(i)/15))
	}

	return &audio.Clip{Samples: samples, SampleRate: rate}
}

// setupConversion creates a conversion with the given chunk durations and
// sample rates, writing a real WAV for every done chunk.
func setupConversion(t *testing.T, store *db.DB, staticDir string, rates []int, seconds float64) string {
	t.Helper()
	ctx := context.Background()

	texts := make([]string, len(rates))
	for i := range texts {
		texts[i] = "chunk"
	}

	id, err := store.CreateConversion(ctx, &db.CreateConversionParams{
		Title:      "My Great Story!",
		Text:       "whatever",
		ChunkTexts: texts,
		Provider:   "local",
	})
	require.NoError(t, err)

	jobDir := filepath.Join(staticDir, "jobs", id)
	require.NoError(t, os.MkdirAll(jobDir, 0755))

	for seq, rate := range rates {
		rel := fmt.Sprintf("jobs/%s/part_%d.wav", id, seq)
		require.NoError(t, audio.WriteWav(filepath.Join(staticDir, filepath.FromSlash(rel)), toneClip(rate, seconds)))
		require.NoError(t, store.UpdateChunk(ctx, id, seq, db.ChunkUpdate{
			Status:    db.ChunkDone,
			AudioFile: rel,
			Duration:  seconds,
		}))
	}

	return id
}

func TestAssembleCombinesNormalizedChunks(t *testing.T) {
	store := newTestStore(t)
	staticDir := t.TempDir()
	ctx := context.Background()

	// Mixed sample rates force the normalization path.
	id := setupConversion(t, store, staticDir, []int{22050, 48000, 24000}, 0.5)

	asm := assembler.New(testLogger(), store, staticDir)

	relPath, err := asm.Assemble(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "jobs/"+id+"/"+time.Now().UTC().Format("2006-01-02")+"_My_Great_Story.wav", relPath)

	combined, err := audio.Load(filepath.Join(staticDir, filepath.FromSlash(relPath)))
	require.NoError(t, err)

	assert.Equal(t, audio.TargetSampleRate, combined.SampleRate)
	assert.InDelta(t, 1.5, combined.Seconds(), 0.01)
}

func TestAssembleIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	staticDir := t.TempDir()
	ctx := context.Background()

	id := setupConversion(t, store, staticDir, []int{24000}, 0.25)

	asm := assembler.New(testLogger(), store, staticDir)

	first, err := asm.Assemble(ctx, id)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(staticDir, filepath.FromSlash(first)))
	require.NoError(t, err)

	second, err := asm.Assemble(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Same file, untouched.
	again, err := os.Stat(filepath.Join(staticDir, filepath.FromSlash(second)))
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), again.ModTime())
}

func TestAssembleNotReady(t *testing.T) {
	store := newTestStore(t)
	staticDir := t.TempDir()
	ctx := context.Background()

	id, err := store.CreateConversion(ctx, &db.CreateConversionParams{
		Title:      "Unfinished",
		Text:       "whatever",
		ChunkTexts: []string{"one", "two"},
	})
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(staticDir, "jobs", id), 0755))
	require.NoError(t, store.UpdateChunk(ctx, id, 0, db.ChunkUpdate{
		Status:    db.ChunkDone,
		AudioFile: "jobs/" + id + "/part_0.wav",
		Duration:  1,
	}))

	asm := assembler.New(testLogger(), store, staticDir)

	_, err = asm.Assemble(ctx, id)

	var notReady *assembler.NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, 1, notReady.SeqNum)

	// No output file was created.
	entries, err := os.ReadDir(filepath.Join(staticDir, "jobs", id))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAssembleMissingFile(t *testing.T) {
	store := newTestStore(t)
	staticDir := t.TempDir()
	ctx := context.Background()

	id := setupConversion(t, store, staticDir, []int{24000, 24000}, 0.25)

	missing := filepath.Join(staticDir, "jobs", id, "part_1.wav")
	require.NoError(t, os.Remove(missing))

	asm := assembler.New(testLogger(), store, staticDir)

	_, err := asm.Assemble(ctx, id)

	var missingErr *assembler.MissingFileError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, 1, missingErr.SeqNum)
}

func TestAssembleRenameQuirkProducesSecondFile(t *testing.T) {
	store := newTestStore(t)
	staticDir := t.TempDir()
	ctx := context.Background()

	id := setupConversion(t, store, staticDir, []int{24000}, 0.25)

	asm := assembler.New(testLogger(), store, staticDir)

	first, err := asm.Assemble(ctx, id)
	require.NoError(t, err)

	require.NoError(t, store.UpdateTitle(ctx, id, "Renamed Story"))

	second, err := asm.Assemble(ctx, id)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	_, err = os.Stat(filepath.Join(staticDir, filepath.FromSlash(first)))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(staticDir, filepath.FromSlash(second)))
	assert.NoError(t, err)
}

func TestOutputName(t *testing.T) {
	createdAt := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		title    string
		expected string
	}{
		{"My Great Story!", "2024-03-09_My_Great_Story.wav"},
		{"a  b//c", "2024-03-09_a_b_c.wav"},
		{"___", "2024-03-09_conversion.wav"},
		{"Ünïcödé", "2024-03-09_n_c_d.wav"},
		{"already_safe-title", "2024-03-09_already_safe-title.wav"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, assembler.OutputName(createdAt, tt.title))
	}
}
