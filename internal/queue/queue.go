package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type Queue struct {
	db        *sql.DB
	dedupeTTL time.Duration
	now       func() time.Time
}

// New returns a queue over db. dedupeTTL <= 0 disables deduplication.
func New(db *sql.DB, dedupeTTL time.Duration) *Queue {
	return &Queue{db: db, dedupeTTL: dedupeTTL, now: time.Now}
}

func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (EnqueueResult, error) {
	if req.Receiver == "" {
		return EnqueueResult{}, fmt.Errorf("receiver is empty")
	}
	if req.EventType == "" {
		return EnqueueResult{}, fmt.Errorf("event_type is empty")
	}
	if req.SubmittedBy == "" {
		return EnqueueResult{}, fmt.Errorf("submitted_by is empty")
	}
	if req.Verification == "" {
		return EnqueueResult{}, fmt.Errorf("verification is empty")
	}

	now := q.now().UTC()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if req.DedupeKey != "" && q.dedupeTTL > 0 {
		cutoff := now.Add(-q.dedupeTTL).Format(timeFormat)
		var existing string
		err := tx.QueryRowContext(ctx, `
SELECT id FROM webhook_jobs
WHERE dedupe_key = ? AND created_at >= ?
ORDER BY created_at DESC
LIMIT 1;
`, req.DedupeKey, cutoff).Scan(&existing)
		switch {
		case err == nil:
			return EnqueueResult{JobID: existing, Duplicate: true}, nil
		case !errors.Is(err, sql.ErrNoRows):
			return EnqueueResult{}, fmt.Errorf("dedupe lookup: %w", err)
		}
	}

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
INSERT INTO webhook_jobs(
  id, receiver, event_type, payload, status, submitted_by, dedupe_key, verification, request_id, created_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, id, req.Receiver, req.EventType, req.Payload, StatusQueued, req.SubmittedBy,
		nullString(req.DedupeKey), req.Verification, nullString(req.RequestID), now.Format(timeFormat))
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("enqueue job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return EnqueueResult{}, fmt.Errorf("commit tx: %w", err)
	}
	return EnqueueResult{JobID: id}, nil
}

// Get loads a job by id.
func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	row := q.db.QueryRowContext(ctx, `
SELECT id, receiver, event_type, payload, status, submitted_by, dedupe_key, verification, request_id, created_at
FROM webhook_jobs
WHERE id = ?;
`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// List returns jobs newest first.
func (q *Queue) List(ctx context.Context, filter ListFilter) ([]*Job, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var (
		where []string
		args  []any
	)
	if filter.Receiver != "" {
		where = append(where, "receiver = ?")
		args = append(args, filter.Receiver)
	}

	query := `
SELECT id, receiver, event_type, payload, status, submitted_by, dedupe_key, verification, request_id, created_at
FROM webhook_jobs`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY created_at DESC, rowid DESC\nLIMIT ?;"
	args = append(args, limit)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*Job, error) {
	var (
		j          Job
		statusS    string
		dedupeKey  sql.NullString
		requestID  sql.NullString
		createdAtS string
	)
	if err := s.Scan(&j.ID, &j.Receiver, &j.EventType, &j.Payload, &statusS, &j.SubmittedBy,
		&dedupeKey, &j.Verification, &requestID, &createdAtS); err != nil {
		return nil, err
	}

	j.Status = Status(statusS)
	if dedupeKey.Valid {
		j.DedupeKey = &dedupeKey.String
	}
	if requestID.Valid {
		j.RequestID = &requestID.String
	}
	if t, err := time.Parse(timeFormat, createdAtS); err == nil {
		j.CreatedAt = t
	}
	return &j, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
