package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/linkmetrics/pkg/models"
)

const (
	jobColumns    = `id, status, total_rows, processed_rows, created_at, updated_at`
	resultColumns = `id, job_id, platform, url, status, title, views, likes, comments, published_at, engagement_rate, error_message`
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

// --- Jobs ---

func (s *PostgresStore) CreateJobWithResults(ctx context.Context, job *models.Job, results []*models.Result) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create job: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO jobs (id, status, total_rows, processed_rows, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.Status, job.TotalRows, job.ProcessedRows, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", mapPgError(err))
	}

	if len(results) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"results"},
			[]string{"job_id", "platform", "url", "status"},
			pgx.CopyFromSlice(len(results), func(i int) ([]any, error) {
				r := results[i]
				return []any{job.ID, r.Platform, r.URL, r.Status}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("create results: %w", mapPgError(err))
		}

		ids, err := s.resultIDs(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		if len(ids) != len(results) {
			return fmt.Errorf("create results: inserted %d rows, expected %d", len(ids), len(results))
		}
		for i, r := range results {
			r.ID = ids[i]
			r.JobID = job.ID
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) resultIDs(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) ([]int64, error) {
	rows, err := tx.Query(ctx, `SELECT id FROM results WHERE job_id = $1 ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("read result ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan result ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id ASC LIMIT $1 OFFSET $2`,
		filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

func (s *PostgresStore) TransitionJob(ctx context.Context, id uuid.UUID, to string) (*models.Job, error) {
	from := models.TransitionSources(to)
	if len(from) == 0 {
		return nil, fmt.Errorf("%w: nothing may move to %q", ErrInvalidTransition, to)
	}

	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE jobs SET status = $2, updated_at = $3
		 WHERE id = $1 AND status = ANY($4)
		 RETURNING `+jobColumns,
		id, to, time.Now().UTC(), from))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.transitionFailure(ctx, id, to)
	}
	if err != nil {
		return nil, fmt.Errorf("transition job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE jobs SET status = $2, updated_at = $3,
		   processed_rows = (SELECT COUNT(*) FROM results WHERE job_id = $1 AND status <> $4)
		 WHERE id = $1 AND status = $5
		 RETURNING `+jobColumns,
		id, models.JobStatusCompleted, time.Now().UTC(), models.ResultStatusQueued, models.JobStatusRunning))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.transitionFailure(ctx, id, models.JobStatusCompleted)
	}
	if err != nil {
		return nil, fmt.Errorf("complete job: %w", err)
	}
	return j, nil
}

// transitionFailure explains why a conditional job update matched no row.
func (s *PostgresStore) transitionFailure(ctx context.Context, id uuid.UUID, to string) error {
	var current string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
}

func (s *PostgresStore) ResetStaleRuns(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, updated_at = $2 WHERE status = $3`,
		models.JobStatusQueued, time.Now().UTC(), models.JobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("reset stale runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Results ---

func (s *PostgresStore) ListResults(ctx context.Context, filter ResultFilter) ([]*models.Result, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM results WHERE job_id = $1`, filter.JobID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM results WHERE job_id = $1 ORDER BY id ASC LIMIT $2 OFFSET $3`,
		filter.JobID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	results := []*models.Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

func (s *PostgresStore) ListQueuedResults(ctx context.Context, jobID uuid.UUID) ([]*models.Result, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM results WHERE job_id = $1 AND status = $2 ORDER BY id ASC`,
		jobID, models.ResultStatusQueued)
	if err != nil {
		return nil, fmt.Errorf("list queued results: %w", err)
	}
	defer rows.Close()

	var results []*models.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PostgresStore) StreamResults(ctx context.Context, jobID uuid.UUID, fn func(*models.Result) error) error {
	rows, err := s.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM results WHERE job_id = $1 ORDER BY id ASC`, jobID)
	if err != nil {
		return fmt.Errorf("stream results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return fmt.Errorf("scan result: %w", err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *PostgresStore) CompleteResult(ctx context.Context, r *models.Result) error {
	if !r.Terminal() {
		return fmt.Errorf("complete result %d: status %q is not terminal", r.ID, r.Status)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE results SET status = $2, title = $3, views = $4, likes = $5, comments = $6,
		   published_at = $7, engagement_rate = $8, error_message = $9
		 WHERE id = $1 AND status = $10`,
		r.ID, r.Status, r.Title, r.Views, r.Likes, r.Comments,
		r.PublishedAt, r.EngagementRate, r.ErrorMessage, models.ResultStatusQueued)
	if err != nil {
		return fmt.Errorf("complete result: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrResultNotQueued
	}
	return nil
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	if err := row.Scan(&j.ID, &j.Status, &j.TotalRows, &j.ProcessedRows, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	return &j, nil
}

func scanResult(row pgx.Row) (*models.Result, error) {
	var r models.Result
	if err := row.Scan(&r.ID, &r.JobID, &r.Platform, &r.URL, &r.Status, &r.Title, &r.Views,
		&r.Likes, &r.Comments, &r.PublishedAt, &r.EngagementRate, &r.ErrorMessage); err != nil {
		return nil, err
	}
	return &r, nil
}

// mapPgError translates constraint violations into store sentinels.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.ConstraintName)
	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
	}
	return err
}
