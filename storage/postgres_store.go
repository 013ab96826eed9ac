package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/serisow/vibeveed/pipeline_type"
)

const createResultsTable = `
CREATE TABLE IF NOT EXISTS processing_results (
	id                     TEXT PRIMARY KEY,
	image_name             TEXT NOT NULL,
	started_at             TIMESTAMPTZ NOT NULL,
	completed_at           TIMESTAMPTZ,
	status                 TEXT NOT NULL,
	cloudinary_url         TEXT,
	background_removed_url TEXT,
	effects_video_url      TEXT,
	audio_url              TEXT,
	final_video_url        TEXT,
	error                  TEXT
)`

const upsertResult = `
INSERT INTO processing_results (
	id, image_name, started_at, completed_at, status,
	cloudinary_url, background_removed_url, effects_video_url, audio_url, final_video_url, error
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
	completed_at = EXCLUDED.completed_at,
	status = EXCLUDED.status,
	cloudinary_url = EXCLUDED.cloudinary_url,
	background_removed_url = EXCLUDED.background_removed_url,
	effects_video_url = EXCLUDED.effects_video_url,
	audio_url = EXCLUDED.audio_url,
	final_video_url = EXCLUDED.final_video_url,
	error = EXCLUDED.error`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresResultStore upserts runs into the processing_results table.
type PostgresResultStore struct {
	db execer
}

// Connect opens a pool on dbURL, retrying while the database comes up, and
// makes sure the results table exists.
func Connect(ctx context.Context, dbURL string, maxRetries int, retryDelay time.Duration) (*pgxpool.Pool, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse DATABASE_URL: %v", err)
	}

	var pool *pgxpool.Pool
	for i := 0; i < maxRetries; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			err = pool.Ping(ctx)
			if err == nil {
				log.Println("Successfully connected to the database")
				break
			}
			pool.Close()
		}

		log.Printf("Failed to connect to the database (attempt %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database after %d attempts: %v", maxRetries, err)
	}

	if _, err := pool.Exec(ctx, createResultsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to create processing_results table: %v", err)
	}
	return pool, nil
}

func NewPostgresResultStore(pool *pgxpool.Pool) *PostgresResultStore {
	return &PostgresResultStore{db: pool}
}

func (s *PostgresResultStore) Save(ctx context.Context, result *pipeline_type.ProcessingResult) (string, error) {
	startedAt, err := time.Parse(time.RFC3339, result.Timestamp)
	if err != nil {
		return "", fmt.Errorf("invalid run timestamp %q: %w", result.Timestamp, err)
	}
	var completedAt *time.Time
	if result.CompletedAt != "" {
		if t, err := time.Parse(time.RFC3339, result.CompletedAt); err == nil {
			completedAt = &t
		}
	}

	_, err = s.db.Exec(ctx, upsertResult,
		result.ID,
		result.ImageName,
		startedAt,
		completedAt,
		string(result.Status),
		result.CloudinaryURL,
		result.BackgroundRemovedURL,
		result.EffectsVideoURL,
		result.AudioURL,
		result.FinalVideoURL,
		result.Error,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save run %s: %w", result.ID, err)
	}
	return "processing_results/" + result.ID, nil
}
