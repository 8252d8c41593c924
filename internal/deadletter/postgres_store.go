// Package deadletter implements the failed_jobs dead-letter table:
// permanently failed block/log jobs are recorded here instead of being
// retried forever, and can be redriven back onto the job queue in bulk.
package deadletter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/csic-platform/eth-indexer/internal/domain"
	"github.com/csic-platform/eth-indexer/internal/logging"
	"github.com/csic-platform/eth-indexer/internal/metrics"
	"github.com/csic-platform/eth-indexer/internal/ports"
)

// PostgresStore implements ports.DeadLetterStore over a plain
// database/sql connection, matching the rest of the platform's
// lib/pq-backed repositories.
type PostgresStore struct {
	db    *sql.DB
	queue ports.Queue
	log   *logging.Logger
}

// New builds a PostgresStore. queue is used by Redrive to republish jobs.
func New(db *sql.DB, queue ports.Queue, log *logging.Logger) *PostgresStore {
	return &PostgresStore{db: db, queue: queue, log: log}
}

// Record inserts a FailedJob row. A duplicate job_id (the job was already
// dead-lettered once) updates the existing row rather than erroring.
func (s *PostgresStore) Record(ctx context.Context, fj domain.FailedJob) error {
	query := `
		INSERT INTO failed_jobs (job_id, job_type, payload, status, retries, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status,
			last_error = EXCLUDED.last_error,
			payload = EXCLUDED.payload
	`
	_, err := s.db.ExecContext(ctx, query,
		fj.ID, fj.JobType, fj.Payload, domain.StatusError, fj.Retries, fj.LastError, time.Now().UTC(),
	)
	if err != nil {
		s.log.Error("failed to record dead-lettered job", logging.String("job_id", fj.ID), logging.Err(err))
		return fmt.Errorf("record failed job %s: %w", fj.ID, err)
	}
	return nil
}

// Remove deletes the FailedJob row once a redriven job has completed
// successfully.
func (s *PostgresStore) Remove(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM failed_jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("remove failed job %s: %w", jobID, err)
	}
	return nil
}

// Redrive selects every ERROR-status FailedJob of the given type,
// republishes it onto the job queue with status set to retrying, and
// marks it RETRYING with an incremented retry count. Returns the number
// of jobs redriven.
func (s *PostgresStore) Redrive(ctx context.Context, jobType domain.JobType) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, payload, retries
		FROM failed_jobs
		WHERE status = $1 AND job_type = $2
	`, domain.StatusError, jobType)
	if err != nil {
		return 0, fmt.Errorf("select failed jobs: %w", err)
	}

	type row struct {
		jobID   string
		payload string
		retries int
	}
	var toRedrive []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.jobID, &r.payload, &r.retries); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan failed job row: %w", err)
		}
		toRedrive = append(toRedrive, r)
	}
	rows.Close()

	count := 0
	for _, r := range toRedrive {
		if err := s.republish(ctx, jobType, r.jobID, r.payload); err != nil {
			s.log.Error("failed to republish job during redrive", logging.String("job_id", r.jobID), logging.Err(err))
			continue
		}
		now := time.Now().UTC()
		_, err := s.db.ExecContext(ctx, `
			UPDATE failed_jobs
			SET status = $1, retries = $2, last_retry_at = $3
			WHERE job_id = $4
		`, domain.StatusRetrying, r.retries+1, now, r.jobID)
		if err != nil {
			s.log.Error("failed to mark job retrying", logging.String("job_id", r.jobID), logging.Err(err))
			continue
		}
		count++
	}
	metrics.RedriveTotal.WithLabelValues(string(jobType)).Add(float64(count))

	s.log.Info("redrive complete", logging.String("job_type", string(jobType)), logging.Int("count", count))
	return count, nil
}

func (s *PostgresStore) republish(ctx context.Context, jobType domain.JobType, jobID, payload string) error {
	switch jobType {
	case domain.JobTypeBlock:
		var job domain.BlockJob
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			return fmt.Errorf("unmarshal stored block job %s: %w", jobID, err)
		}
		job.JobID = jobID
		job.Status = "retrying"
		return s.queue.PushBlockJob(ctx, job)
	case domain.JobTypeLog:
		var job domain.LogJob
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			return fmt.Errorf("unmarshal stored log job %s: %w", jobID, err)
		}
		job.JobID = jobID
		job.Status = "retrying"
		return s.queue.PushLogJob(ctx, job)
	default:
		return fmt.Errorf("unknown job type %q", jobType)
	}
}
