package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
)

type MessagesRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewMessagesRepo(db *sql.DB) *MessagesRepo {
	return &MessagesRepo{db: db, now: time.Now}
}

// AppendMessage stores msg in its own transaction and returns the new id.
// A zero msg.CreatedAt is replaced with the current time. Only user and
// assistant messages keep their embedding.
func (r *MessagesRepo) AppendMessage(ctx context.Context, threadID int64, msg core.Message) (int64, error) {
	if !core.IsValidRole(msg.Role) {
		return 0, &core.StorageError{Op: "append message", Err: fmt.Errorf("%w: %q", core.ErrInvalidRole, msg.Role)}
	}
	if strings.TrimSpace(msg.Content) == "" {
		return 0, &core.StorageError{Op: "append message", Err: core.ErrEmptyContent}
	}

	if !core.Embeddable(msg.Role) && len(msg.Embedding) > 0 {
		log.FromCtx(ctx).Debug().Str("role", msg.Role).Msg("dropping embedding of non-embeddable message")
		msg.Embedding = nil
	}

	vecBlob, err := serializeVector(msg.Embedding)
	if err != nil {
		return 0, &core.StorageError{Op: "append message", Err: err}
	}

	created := msg.CreatedAt
	if created.IsZero() {
		created = r.now()
	}

	var userID sql.NullString
	if msg.UserID != "" {
		userID = sql.NullString{String: msg.UserID, Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &core.StorageError{Op: "append message", Err: err}
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM threads WHERE id = ?`, threadID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &core.StorageError{Op: "append message", Err: fmt.Errorf("%w: %d", core.ErrThreadNotFound, threadID)}
	}
	if err != nil {
		return 0, &core.StorageError{Op: "append message", Err: err}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (thread_id, role, content, embedding, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		threadID, msg.Role, msg.Content, vecBlob, userID, formatTime(created),
	)
	if err != nil {
		return 0, &core.StorageError{Op: "append message", Err: fmt.Errorf("failed to insert message: %w", err)}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, &core.StorageError{Op: "append message", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return 0, &core.StorageError{Op: "append message", Err: err}
	}
	return id, nil
}

// Candidates returns the embedded messages of a thread, oldest first, leaving
// out the newest message of the thread. Callers append the current query
// before asking for candidates, so the query never competes with itself.
func (r *MessagesRepo) Candidates(ctx context.Context, threadID int64) (core.CandidateSet, error) {
	query := `
		SELECT id, role, content, embedding, created_at
		FROM messages
		WHERE thread_id = ?
		  AND embedding IS NOT NULL
		  AND id < (SELECT MAX(id) FROM messages WHERE thread_id = ?)
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, threadID, threadID)
	if err != nil {
		return core.CandidateSet{}, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	logger := log.FromCtx(ctx)
	set := core.CandidateSet{Candidates: make([]core.Candidate, 0)}

	for rows.Next() {
		var (
			c       core.Candidate
			blob    []byte
			created string
		)
		if err := rows.Scan(&c.ID, &c.Role, &c.Content, &blob, &created); err != nil {
			return core.CandidateSet{}, fmt.Errorf("failed to scan candidate: %w", err)
		}

		vec, err := decodeVector(blob)
		if err != nil {
			logger.Warn().Err(err).Int64("msg_id", c.ID).Msg("skipping candidate with undecodable embedding")
			set.Skipped++
			continue
		}
		c.Embedding = vec

		if c.CreatedAt, err = parseTime(created); err != nil {
			logger.Warn().Err(err).Int64("msg_id", c.ID).Msg("skipping candidate with bad timestamp")
			set.Skipped++
			continue
		}

		set.Candidates = append(set.Candidates, c)
	}

	if err := rows.Err(); err != nil {
		return core.CandidateSet{}, err
	}

	logger.Debug().
		Int64("thread_id", threadID).
		Int("count", len(set.Candidates)).
		Int("skipped", set.Skipped).
		Msg("loaded retrieval candidates")
	return set, nil
}

// History returns the last limit messages of a thread in chronological order.
func (r *MessagesRepo) History(ctx context.Context, threadID int64, limit int) ([]core.Message, error) {
	if limit <= 0 {
		return nil, &core.StorageError{Op: "history", Err: fmt.Errorf("%w: %d", core.ErrInvalidLimit, limit)}
	}

	// Fetch the LAST 'limit' messages by ordering DESC
	query := `SELECT id, thread_id, role, content, user_id, created_at FROM messages WHERE thread_id = ? ORDER BY id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []core.Message
	for rows.Next() {
		var (
			msg     core.Message
			userID  sql.NullString
			created string
		)
		if err := rows.Scan(&msg.ID, &msg.ThreadID, &msg.Role, &msg.Content, &userID, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.UserID = userID.String
		if msg.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest -> Oldest from the query; flip back to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	log.FromCtx(ctx).Debug().Int("count", len(messages)).Msg("loaded history messages")
	return messages, nil
}
