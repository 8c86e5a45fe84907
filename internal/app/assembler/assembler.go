// Package assembler produces one combined audio file from all completed
// chunks of a conversion, on demand. Chunks may come from different
// backends at different sample rates, so everything is normalized to one
// canonical rate before concatenation.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"app/db"
	"app/pkg/audio"
)

// NotReadyError means assembly was requested before every chunk was done.
// No filesystem changes are made.
type NotReadyError struct {
	SeqNum int
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("chunk %d is not ready", e.SeqNum)
}

// MissingFileError means a done chunk's audio file is absent on disk. This
// is a data integrity failure, distinct from NotReadyError.
type MissingFileError struct {
	SeqNum int
	Path   string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("missing audio file for chunk %d: %s", e.SeqNum, e.Path)
}

type Assembler struct {
	logger *slog.Logger

	store     *db.DB
	staticDir string
}

func New(logger *slog.Logger, store *db.DB, staticDir string) *Assembler {
	return &Assembler{
		logger: logger,

		store:     store,
		staticDir: staticDir,
	}
}

var (
	nonAlnum       = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

func sanitizeTitle(title string) string {
	safe := nonAlnum.ReplaceAllString(title, "_")
	safe = underscoreRuns.ReplaceAllString(safe, "_")
	safe = strings.Trim(safe, "_")

	if safe == "" {
		return "conversion"
	}

	return safe
}

// OutputName derives the combined file's name from the conversion's
// creation date and sanitized title. The title is mutable, so renaming
// after a successful assembly yields a second, disconnected file; known
// quirk, not reconciled here.
func OutputName(createdAt time.Time, title string) string {
	return createdAt.Format("2006-01-02") + "_" + sanitizeTitle(title) + ".wav"
}

// Assemble returns the combined file's path relative to the static root.
// If the target file already exists it is returned as is, which makes the
// operation idempotent and cheap to call repeatedly.
func (a *Assembler) Assemble(ctx context.Context, conversionID string) (string, error) {
	conv, err := a.store.GetConversionWithChunks(ctx, conversionID)
	if err != nil {
		return "", fmt.Errorf("failed to get conversion: %w", err)
	}

	if len(conv.Chunks) == 0 {
		return "", fmt.Errorf("conversion has no chunks")
	}

	relPath := path.Join("jobs", conversionID, OutputName(conv.CreatedAt, conv.Title))
	finalPath := filepath.Join(a.staticDir, filepath.FromSlash(relPath))

	if _, err := os.Stat(finalPath); err == nil {
		return relPath, nil
	}

	for _, chunk := range conv.Chunks {
		if chunk.Status != db.ChunkDone || chunk.AudioFile == "" {
			return "", &NotReadyError{SeqNum: chunk.SeqNum}
		}
	}

	clips := make([]*audio.Clip, 0, len(conv.Chunks))

	for _, chunk := range conv.Chunks {
		partPath := filepath.Join(a.staticDir, filepath.FromSlash(chunk.AudioFile))

		clip, err := audio.Load(partPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", &MissingFileError{SeqNum: chunk.SeqNum, Path: chunk.AudioFile}
			}

			return "", fmt.Errorf("failed to load chunk %d: %w", chunk.SeqNum, err)
		}

		clips = append(clips, clip.Resampled(audio.TargetSampleRate))
	}

	combined, err := audio.Concat(clips...)
	if err != nil {
		return "", fmt.Errorf("failed to concatenate chunks: %w", err)
	}

	if err := audio.WriteWav(finalPath, combined); err != nil {
		return "", fmt.Errorf("failed to write combined file: %w", err)
	}

	a.logger.Info("assembled full audio", "conversion_id", conversionID, "path", relPath, "seconds", combined.Seconds())

	return relPath, nil
}
