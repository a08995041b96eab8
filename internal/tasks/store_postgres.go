package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists tasks in PostgreSQL. The id counter lives in a
// per-session counter row so ids keep increasing after deletes, even
// when the highest task is removed.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initTaskSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initTaskSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS todo_tasks (
			session_id TEXT NOT NULL,
			id BIGINT NOT NULL,
			title TEXT NOT NULL,
			priority TEXT NOT NULL,
			scheduled_time TIMESTAMPTZ NULL,
			category TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (session_id, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_todo_tasks_session_id ON todo_tasks (session_id, id);`,
		`CREATE TABLE IF NOT EXISTS todo_session_counters (
			session_id TEXT PRIMARY KEY,
			next_id BIGINT NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init task schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, sessionID string, req CreateRequest) (Task, error) {
	if err := req.Validate(); err != nil {
		return Task{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Task{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO todo_session_counters (session_id, next_id) VALUES ($1, 2)
		 ON CONFLICT (session_id) DO UPDATE SET next_id = todo_session_counters.next_id + 1
		 RETURNING next_id - 1`,
		sessionID,
	).Scan(&id)
	if err != nil {
		return Task{}, fmt.Errorf("next task id: %w", err)
	}

	now := time.Now().UTC()
	task := Task{
		ID:            id,
		SessionID:     sessionID,
		Title:         req.Title,
		Priority:      req.Priority,
		ScheduledTime: req.ScheduledTime,
		Category:      req.Category,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO todo_tasks (session_id, id, title, priority, scheduled_time, category, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		task.SessionID,
		task.ID,
		task.Title,
		string(task.Priority),
		task.ScheduledTime,
		task.Category,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Task{}, fmt.Errorf("commit tx: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID string, id int64) (Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT session_id, id, title, priority, scheduled_time, category, created_at, updated_at
		   FROM todo_tasks WHERE session_id=$1 AND id=$2`,
		sessionID, id,
	)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) List(ctx context.Context, sessionID, category string) ([]Task, error) {
	query := `SELECT session_id, id, title, priority, scheduled_time, category, created_at, updated_at
		   FROM todo_tasks WHERE session_id=$1 ORDER BY id ASC`
	args := []any{sessionID}
	if category != "" {
		query = `SELECT session_id, id, title, priority, scheduled_time, category, created_at, updated_at
		   FROM todo_tasks WHERE session_id=$1 AND LOWER(category)=LOWER($2) ORDER BY id ASC`
		args = append(args, category)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *PostgresStore) Update(ctx context.Context, sessionID string, id int64, req UpdateRequest) (Task, error) {
	if err := req.Validate(); err != nil {
		return Task{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Task{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT session_id, id, title, priority, scheduled_time, category, created_at, updated_at
		   FROM todo_tasks WHERE session_id=$1 AND id=$2 FOR UPDATE`,
		sessionID, id,
	)
	existing, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("lock task: %w", err)
	}

	updated := req.Apply(existing, time.Now().UTC())
	_, err = tx.Exec(ctx,
		`UPDATE todo_tasks SET title=$3, priority=$4, scheduled_time=$5, category=$6, updated_at=$7
		  WHERE session_id=$1 AND id=$2`,
		sessionID,
		id,
		updated.Title,
		string(updated.Priority),
		updated.ScheduledTime,
		updated.Category,
		updated.UpdatedAt,
	)
	if err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Task{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM todo_tasks WHERE session_id=$1 AND id=$2`,
		sessionID, id,
	)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) All(ctx context.Context) ([]Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, id, title, priority, scheduled_time, category, created_at, updated_at
		   FROM todo_tasks ORDER BY session_id, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list all tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows pgx.Rows) ([]Task, error) {
	out := make([]Task, 0, 8)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}
	return out, nil
}

func scanTask(row pgx.Row) (Task, error) {
	var (
		task      Task
		priority  string
		scheduled *time.Time
	)
	if err := row.Scan(
		&task.SessionID,
		&task.ID,
		&task.Title,
		&priority,
		&scheduled,
		&task.Category,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return Task{}, err
	}
	task.Priority = Priority(priority)
	task.ScheduledTime = scheduled
	return task, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
