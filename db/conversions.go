package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout is fixed width so lexicographic ordering on created_at
// matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
)

type ChunkStatus string

const (
	ChunkPending    ChunkStatus = "pending"
	ChunkProcessing ChunkStatus = "processing"
	ChunkDone       ChunkStatus = "done"
	ChunkError      ChunkStatus = "error"
)

type Conversion struct {
	ID    string
	Title string
	Text  string

	Status Status

	TotalChunks     int
	ProcessedChunks int
	LastPlayedIndex int

	Speaker  string
	Language string
	Provider string

	EstimatedDuration float64
	TotalDuration     float64

	CreatedAt time.Time

	// Chunks is populated by GetConversionWithChunks, ordered by seq num.
	Chunks []*Chunk
}

type Chunk struct {
	ConversionID string
	SeqNum       int
	Text         string

	Status ChunkStatus

	// AudioFile is a path relative to the static root, set only once the
	// chunk is done.
	AudioFile string
	Duration  float64
}

type CreateConversionParams struct {
	Title string
	Text  string

	ChunkTexts []string

	Speaker  string
	Language string
	Provider string

	EstimatedDuration float64
}

// CreateConversion inserts the conversion row and all of its chunk rows in
// one transaction and returns the new conversion id.
func (d *DB) CreateConversion(ctx context.Context, params *CreateConversionParams) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := uuid.NewString()
	createdAt := time.Now().UTC().Format(timeLayout)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		insert into
			conversions (id, title, text, status, total_chunks, processed_chunks, speaker, language, provider, estimated_duration, created_at)
		values
			($1, $2, $3, $4, $5, 0, $6, $7, $8, $9, $10)
	`, id, params.Title, params.Text, StatusQueued, len(params.ChunkTexts),
		params.Speaker, params.Language, params.Provider, params.EstimatedDuration, createdAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert conversion: %w", err)
	}

	for seq, text := range params.ChunkTexts {
		_, err = tx.ExecContext(ctx, `
			insert into
				chunks (conversion_id, seq_num, text, status)
			values
				($1, $2, $3, $4)
		`, id, seq, text, ChunkPending)
		if err != nil {
			return "", fmt.Errorf("failed to insert chunk %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit tx: %w", err)
	}

	return id, nil
}

const conversionColumns = `
	id,
	title,
	text,
	status,
	total_chunks,
	processed_chunks,
	last_played_index,
	speaker,
	language,
	provider,
	estimated_duration,
	total_duration,
	created_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversion(row rowScanner) (*Conversion, error) {
	var conv Conversion
	var createdAt string

	err := row.Scan(
		&conv.ID,
		&conv.Title,
		&conv.Text,
		&conv.Status,
		&conv.TotalChunks,
		&conv.ProcessedChunks,
		&conv.LastPlayedIndex,
		&conv.Speaker,
		&conv.Language,
		&conv.Provider,
		&conv.EstimatedDuration,
		&conv.TotalDuration,
		&createdAt,
	)
	if err != nil {
		return nil, parseErr(err)
	}

	conv.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return &conv, nil
}

// GetConversion returns the conversion summary without chunks.
func (d *DB) GetConversion(ctx context.Context, id string) (*Conversion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	conv, err := scanConversion(d.db.QueryRowContext(ctx, `
		select `+conversionColumns+`
		from conversions
		where id = $1
	`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get conversion: %w", err)
	}

	return conv, nil
}

// GetConversionWithChunks returns the conversion with its chunks ordered
// by seq num.
func (d *DB) GetConversionWithChunks(ctx context.Context, id string) (*Conversion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	conv, err := scanConversion(d.db.QueryRowContext(ctx, `
		select `+conversionColumns+`
		from conversions
		where id = $1
	`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get conversion: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, `
		select
			conversion_id,
			seq_num,
			text,
			status,
			audio_file,
			duration
		from chunks
		where conversion_id = $1
		order by seq_num asc
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var chunk Chunk

		if err := rows.Scan(
			&chunk.ConversionID,
			&chunk.SeqNum,
			&chunk.Text,
			&chunk.Status,
			&chunk.AudioFile,
			&chunk.Duration,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}

		conv.Chunks = append(conv.Chunks, &chunk)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", rows.Err())
	}

	return conv, nil
}

// ListConversions returns conversion summaries, newest first.
func (d *DB) ListConversions(ctx context.Context) ([]*Conversion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.db.QueryContext(ctx, `
		select `+conversionColumns+`
		from conversions
		order by created_at desc
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversions: %w", err)
	}
	defer rows.Close()

	var conversions []*Conversion

	for rows.Next() {
		conv, err := scanConversion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversion: %w", err)
		}

		conversions = append(conversions, conv)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("failed to iterate conversions: %w", rows.Err())
	}

	return conversions, nil
}

type ChunkUpdate struct {
	Status ChunkStatus

	// AudioFile and Duration are recorded only on ChunkDone.
	AudioFile string
	Duration  float64
}

// UpdateChunk updates one chunk row and recomputes the conversion's
// processed count, total duration, and status in the same transaction. A
// write against a conversion that no longer exists is a silent no-op, so a
// delete can never corrupt the worker's control flow.
func (d *DB) UpdateChunk(ctx context.Context, conversionID string, seqNum int, upd ChunkUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var totalChunks int
	if err := tx.QueryRowContext(ctx, `
		select total_chunks from conversions where id = $1
	`, conversionID).Scan(&totalChunks); err != nil {
		if ErrCode(parseErr(err)) == ErrCodeNoRows {
			return nil
		}

		return fmt.Errorf("failed to get conversion: %w", err)
	}

	if upd.Status == ChunkDone {
		_, err = tx.ExecContext(ctx, `
			update chunks
			set status = $1, audio_file = $2, duration = $3
			where conversion_id = $4 and seq_num = $5
		`, upd.Status, upd.AudioFile, upd.Duration, conversionID, seqNum)
	} else {
		_, err = tx.ExecContext(ctx, `
			update chunks
			set status = $1
			where conversion_id = $2 and seq_num = $3
		`, upd.Status, conversionID, seqNum)
	}
	if err != nil {
		return fmt.Errorf("failed to update chunk: %w", err)
	}

	var doneCount int
	var totalDuration float64
	if err := tx.QueryRowContext(ctx, `
		select count(*), coalesce(sum(duration), 0.0)
		from chunks
		where conversion_id = $1 and status = $2
	`, conversionID, ChunkDone).Scan(&doneCount, &totalDuration); err != nil {
		return fmt.Errorf("failed to count done chunks: %w", err)
	}

	convStatus := StatusProcessing
	if doneCount == totalChunks {
		convStatus = StatusDone
	}

	if _, err := tx.ExecContext(ctx, `
		update conversions
		set processed_chunks = $1, status = $2, total_duration = $3
		where id = $4
	`, doneCount, convStatus, totalDuration, conversionID); err != nil {
		return fmt.Errorf("failed to update conversion aggregates: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	return nil
}

// UpdateProgress records the client-reported last played chunk index.
// Missing conversions are a silent no-op.
func (d *DB) UpdateProgress(ctx context.Context, conversionID string, lastPlayedIndex int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.ExecContext(ctx, `
		update conversions set last_played_index = $1 where id = $2
	`, lastPlayedIndex, conversionID); err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	return nil
}

// UpdateTitle renames a conversion. Missing conversions are a silent no-op.
func (d *DB) UpdateTitle(ctx context.Context, conversionID string, title string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.ExecContext(ctx, `
		update conversions set title = $1 where id = $2
	`, title, conversionID); err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}

	return nil
}

// DeleteConversion removes all chunk rows and the conversion row as one
// logical unit.
func (d *DB) DeleteConversion(ctx context.Context, conversionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		delete from chunks where conversion_id = $1
	`, conversionID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		delete from conversions where id = $1
	`, conversionID); err != nil {
		return fmt.Errorf("failed to delete conversion: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	return nil
}
