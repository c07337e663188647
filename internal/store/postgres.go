package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/railbird/handreel/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Analysis Jobs ---

const jobColumns = `id, stream_id, tournament_id, event_id, video, status, phase,
	total_segments, completed_segments, failed_segments, segments,
	phase1_hands, phase2_total_hands, phase2_completed_hands,
	progress, error_message, created_at, started_at, completed_at`

func scanJob(row pgx.Row) (*models.AnalysisJob, error) {
	var j models.AnalysisJob
	err := row.Scan(&j.ID, &j.StreamID, &j.TournamentID, &j.EventID, &j.Video,
		&j.Status, &j.Phase,
		&j.TotalSegments, &j.CompletedSegments, &j.FailedSegments, &j.Segments,
		&j.Phase1Hands, &j.Phase2TotalHands, &j.Phase2CompletedHands,
		&j.Progress, &j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.AnalysisJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		job.ID, job.StreamID, job.TournamentID, job.EventID, job.Video,
		job.Status, job.Phase,
		job.TotalSegments, job.CompletedSegments, job.FailedSegments, job.Segments,
		job.Phase1Hands, job.Phase2TotalHands, job.Phase2CompletedHands,
		job.Progress, job.ErrorMessage, job.CreatedAt, job.StartedAt, job.CompletedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (s *PostgresStore) UpdateJobLocked(ctx context.Context, id uuid.UUID, fn func(job *models.AnalysisJob) error) (*models.AnalysisJob, error) {
	var job *models.AnalysisJob
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1 FOR UPDATE`, id)
		j, err := scanJob(row)
		if err != nil {
			return err
		}

		if err := fn(j); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE analysis_jobs SET
				status = $2, phase = $3,
				total_segments = $4, completed_segments = $5, failed_segments = $6,
				segments = $7, phase1_hands = $8,
				phase2_total_hands = $9, phase2_completed_hands = $10,
				progress = $11, error_message = $12,
				started_at = $13, completed_at = $14
			 WHERE id = $1`,
			j.ID, j.Status, j.Phase,
			j.TotalSegments, j.CompletedSegments, j.FailedSegments,
			j.Segments, j.Phase1Hands,
			j.Phase2TotalHands, j.Phase2CompletedHands,
			j.Progress, j.ErrorMessage,
			j.StartedAt, j.CompletedAt)
		if err != nil {
			return fmt.Errorf("write job: %w", err)
		}

		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// --- Hands ---

const handColumns = `id, stream_id, job_id, number, board, pot_size, players,
	actions, winners, video_ts_start, video_ts_end, tags, ai_meta, created_at`

func scanHand(row pgx.Row) (*models.Hand, error) {
	var h models.Hand
	err := row.Scan(&h.ID, &h.StreamID, &h.JobID, &h.Number, &h.Board, &h.PotSize,
		&h.Players, &h.Actions, &h.Winners, &h.VideoTsStart, &h.VideoTsEnd,
		&h.Tags, &h.AIMeta, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan hand: %w", err)
	}
	return &h, nil
}

func (s *PostgresStore) CreateHand(ctx context.Context, hand *models.Hand) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO hands (`+handColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		hand.ID, hand.StreamID, hand.JobID, hand.Number, hand.Board, hand.PotSize,
		hand.Players, hand.Actions, hand.Winners, hand.VideoTsStart, hand.VideoTsEnd,
		hand.Tags, hand.AIMeta, hand.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create hand: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindHandNear(ctx context.Context, streamID string, tsStart, tolerance int) (*models.Hand, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+handColumns+` FROM hands
		 WHERE stream_id = $1 AND video_ts_start BETWEEN $2 - $3 AND $2 + $3
		 ORDER BY ABS(video_ts_start - $2) LIMIT 1`,
		streamID, tsStart, tolerance)
	return scanHand(row)
}

func (s *PostgresStore) ListHandsByStream(ctx context.Context, streamID string) ([]*models.Hand, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+handColumns+` FROM hands
		 WHERE stream_id = $1 ORDER BY video_ts_start ASC`, streamID)
	if err != nil {
		return nil, fmt.Errorf("list hands: %w", err)
	}
	defer rows.Close()

	var hands []*models.Hand
	for rows.Next() {
		h, err := scanHand(rows)
		if err != nil {
			return nil, err
		}
		hands = append(hands, h)
	}
	return hands, rows.Err()
}

func (s *PostgresStore) UpdateHandNumbers(ctx context.Context, numbers []HandNumber) error {
	for start := 0; start < len(numbers); start += batchChunkSize {
		end := start + batchChunkSize
		if end > len(numbers) {
			end = len(numbers)
		}

		batch := &pgx.Batch{}
		for _, n := range numbers[start:end] {
			batch.Queue(`UPDATE hands SET number = $2 WHERE id = $1`, n.ID, n.Number)
		}
		if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("renumber hands batch: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) DeleteHands(ctx context.Context, ids []uuid.UUID) error {
	for start := 0; start < len(ids); start += batchChunkSize {
		end := start + batchChunkSize
		if end > len(ids) {
			end = len(ids)
		}

		batch := &pgx.Batch{}
		for _, id := range ids[start:end] {
			batch.Queue(`DELETE FROM hands WHERE id = $1`, id)
		}
		if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("delete hands batch: %w", err)
		}
	}
	return nil
}

// --- Streams ---

func (s *PostgresStore) UpsertStreamStatus(ctx context.Context, streamID, status string, handsCount *int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO streams (id, hands_count, analysis_status, updated_at)
		 VALUES ($1, COALESCE($2, 0), $3, NOW())
		 ON CONFLICT (id) DO UPDATE SET
		   analysis_status = EXCLUDED.analysis_status,
		   hands_count = COALESCE($2, streams.hands_count),
		   updated_at = NOW()`,
		streamID, handsCount, status)
	if err != nil {
		return fmt.Errorf("upsert stream status: %w", err)
	}
	return nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, last_used_at, created_at
		 FROM api_keys WHERE key_prefix = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.LastUsedAt, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
