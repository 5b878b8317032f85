package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"qa-explainer-video/internal/domain"
	"qa-explainer-video/internal/domain/model"
	"qa-explainer-video/internal/domain/ports/repository"
)

var _ repository.RenderJobRepository = (*RenderJobRepo)(nil)

type RenderJobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewRenderJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *RenderJobRepo {
	return &RenderJobRepo{
		pool: pool,
		tm:   tm,
	}
}

const renderJobColumns = `
id, key, question, user_answer, status, attempts, max_attempts, last_error,
video_key, video_url, created_at, updated_at, started_at, finished_at`

func (r *RenderJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.RenderJob) error {
	job.UpdatedAt = time.Now()

	const q = `
INSERT INTO render_jobs (
  id, key, question, user_answer, status, attempts, max_attempts, last_error,
  video_key, video_url, created_at, updated_at, started_at, finished_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  attempts = EXCLUDED.attempts,
  last_error = EXCLUDED.last_error,
  video_key = EXCLUDED.video_key,
  video_url = EXCLUDED.video_url,
  updated_at = EXCLUDED.updated_at,
  started_at = EXCLUDED.started_at,
  finished_at = EXCLUDED.finished_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.Key, job.Question, job.UserAnswer, string(job.Status),
		job.Attempts, job.MaxAttempts, job.LastError,
		job.VideoKey, job.VideoURL,
		job.CreatedAt, job.UpdatedAt, job.StartedAt, job.FinishedAt)
	return err
}

func scanRenderJob(row pgx.Row) (*model.RenderJob, error) {
	var j model.RenderJob
	var statusStr string
	err := row.Scan(
		&j.ID, &j.Key, &j.Question, &j.UserAnswer, &statusStr,
		&j.Attempts, &j.MaxAttempts, &j.LastError,
		&j.VideoKey, &j.VideoURL,
		&j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Status = model.RenderJobStatus(statusStr)
	return &j, nil
}

func (r *RenderJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.RenderJob, error) {
	const q = `SELECT ` + renderJobColumns + ` FROM render_jobs WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanRenderJob(row)
}

func (r *RenderJobRepo) FindByKey(ctx context.Context, tx repository.Tx, key string) (*model.RenderJob, error) {
	const q = `
SELECT ` + renderJobColumns + `
FROM render_jobs
WHERE key=$1
ORDER BY created_at DESC
LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, key)
	if err != nil {
		return nil, err
	}
	return scanRenderJob(row)
}

func (r *RenderJobRepo) FetchAndMarkProcessing(ctx context.Context) (*model.RenderJob, error) {
	var job *model.RenderJob

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const fetchQuery = `
SELECT ` + renderJobColumns + `
FROM render_jobs
WHERE status = 'pending'
ORDER BY created_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, fetchQuery)
		if err != nil {
			return err
		}

		fetched, err := scanRenderJob(row)
		if err != nil {
			return err
		}

		// Mark the job as processing so no one else picks it up.
		fetched.Status = model.RenderJobStatusProcessing
		fetched.Attempts++
		fetched.StartedAt = time.Now()

		if err := r.Save(ctx, tx, fetched); err != nil {
			return err
		}

		job = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *RenderJobRepo) Touch(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE render_jobs SET updated_at=now() WHERE id=$1 AND status='processing';`
	_, err := execSQL(ctx, r.pool, tx, q, id)
	return err
}

func (r *RenderJobRepo) RequeueStale(ctx context.Context, cutoff time.Time) (int, error) {
	// Out-of-attempts claims become terminal failures instead of looping.
	const failQ = `
UPDATE render_jobs
SET status='failed', last_error='worker lost', finished_at=now(), updated_at=now()
WHERE status='processing' AND updated_at < $1 AND attempts >= max_attempts;`

	const requeueQ = `
UPDATE render_jobs
SET status='pending', updated_at=now()
WHERE status='processing' AND updated_at < $1 AND attempts < max_attempts;`

	total := 0
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		tag, err := execSQL(ctx, r.pool, tx, failQ, cutoff)
		if err != nil {
			return err
		}
		total += int(tag.RowsAffected())

		tag, err = execSQL(ctx, r.pool, tx, requeueQ, cutoff)
		if err != nil {
			return err
		}
		total += int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *RenderJobRepo) CountByStatus(ctx context.Context, status model.RenderJobStatus) (int, error) {
	const q = `SELECT COUNT(*) FROM render_jobs WHERE status=$1;`
	row, err := pickRow(ctx, r.pool, nil, q, string(status))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *RenderJobRepo) List(ctx context.Context, limit int) ([]*model.RenderJob, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `
SELECT ` + renderJobColumns + `
FROM render_jobs
ORDER BY created_at DESC
LIMIT $1;`
	rows, err := pickRows(ctx, r.pool, nil, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.RenderJob
	for rows.Next() {
		j, err := scanRenderJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
