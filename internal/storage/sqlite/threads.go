package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/recall/internal/core"
)

type ThreadsRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewThreadsRepo(db *sql.DB) *ThreadsRepo {
	return &ThreadsRepo{db: db, now: time.Now}
}

func (r *ThreadsRepo) CreateThread(ctx context.Context, name string) (core.Thread, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Thread{}, &core.StorageError{Op: "create thread", Err: core.ErrEmptyContent}
	}

	created := r.now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO threads (name, created_at) VALUES (?, ?)`,
		name, formatTime(created),
	)
	if err != nil {
		return core.Thread{}, &core.StorageError{Op: "create thread", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Thread{}, &core.StorageError{Op: "create thread", Err: err}
	}

	return core.Thread{ID: id, Name: name, CreatedAt: created}, nil
}

func (r *ThreadsRepo) GetThread(ctx context.Context, id int64) (core.Thread, error) {
	var (
		t       core.Thread
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM threads WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Thread{}, &core.StorageError{Op: "get thread", Err: core.ErrThreadNotFound}
	}
	if err != nil {
		return core.Thread{}, &core.StorageError{Op: "get thread", Err: err}
	}

	if t.CreatedAt, err = parseTime(created); err != nil {
		return core.Thread{}, &core.StorageError{Op: "get thread", Err: err}
	}
	return t, nil
}

// ListThreads returns every thread, newest first.
func (r *ThreadsRepo) ListThreads(ctx context.Context) ([]core.Thread, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM threads ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer rows.Close()

	threads := make([]core.Thread, 0)
	for rows.Next() {
		var (
			t       core.Thread
			created string
		)
		if err := rows.Scan(&t.ID, &t.Name, &created); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}

	return threads, rows.Err()
}
