package analytics

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
)

// maxLineSize bounds a single NDJSON record. Longer lines count as malformed.
const maxLineSize = 1 << 20

// Logger is an append-only NDJSON log of retrieval events.
type Logger struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewLogger(path string) *Logger {
	return &Logger{
		path: path,
		now:  time.Now,
	}
}

// Record appends entry and reports failures only through the context logger.
func (l *Logger) Record(ctx context.Context, entry core.RetrievalEntry) {
	if err := l.Append(ctx, entry); err != nil {
		log.FromCtx(ctx).Error().Err(err).Int64("thread_id", entry.ThreadID).Msg("failed to record retrieval")
	}
}

// Append writes entry as one line. A missing event id or timestamp is filled in.
func (l *Logger) Append(_ context.Context, entry core.RetrievalEntry) error {
	if entry.EventID == "" {
		entry.EventID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}
	if entry.ContextPreview == nil {
		entry.ContextPreview = []string{}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal retrieval entry: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open retrieval log: %w", err)
	}
	defer f.Close()

	// One write per record keeps lines whole across processes sharing the file.
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to write retrieval entry: %w", err)
	}
	return nil
}

// Stats reads the whole log and aggregates it. Malformed lines are counted
// and skipped. A missing log yields the zero state.
func (l *Logger) Stats(ctx context.Context) (core.RetrievalStats, []core.RetrievalEntry, error) {
	stats := core.RetrievalStats{RetrievalMethods: map[string]int{}}
	entries := make([]core.RetrievalEntry, 0)

	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return stats, entries, nil
	}
	if err != nil {
		return stats, entries, fmt.Errorf("failed to open retrieval log: %w", err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	var readErr error
	for {
		raw, tooLong, err := readRecord(r)
		switch {
		case tooLong:
			stats.Malformed++
		case len(bytes.TrimSpace(raw)) > 0:
			var e core.RetrievalEntry
			if jsonErr := json.Unmarshal(raw, &e); jsonErr != nil {
				stats.Malformed++
			} else {
				entries = append(entries, e)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = fmt.Errorf("failed to read retrieval log: %w", err)
			break
		}
	}

	if stats.Malformed > 0 {
		log.FromCtx(ctx).Warn().Int("malformed", stats.Malformed).Msg("skipped malformed retrieval log lines")
	}

	// Stats always describe the entries returned, even after a read error.
	aggregate(&stats, entries)
	return stats, entries, readErr
}

// readRecord returns the next line without its line ending. A line longer
// than maxLineSize is drained from r and reported as tooLong. The error is
// io.EOF once the final line has been returned.
func readRecord(r *bufio.Reader) ([]byte, bool, error) {
	var (
		buf     []byte
		tooLong bool
	)
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxLineSize+2 {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		line := bytes.TrimRight(buf, "\r\n")
		if len(line) > maxLineSize {
			return nil, true, err
		}
		return line, tooLong, err
	}
}

func aggregate(stats *core.RetrievalStats, entries []core.RetrievalEntry) {
	if len(entries) == 0 {
		return
	}

	var retrieved, tokens, response int
	threads := make(map[int64]struct{})

	for _, e := range entries {
		retrieved += e.RetrievedCount
		tokens += e.TokenCount
		response += e.ResponseLength
		threads[e.ThreadID] = struct{}{}

		method := e.RetrievalMethod
		if method == "" {
			method = "unknown"
		}
		stats.RetrievalMethods[method]++
	}

	n := float64(len(entries))
	stats.TotalRetrievals = len(entries)
	stats.AvgRetrievedMessages = float64(retrieved) / n
	stats.AvgTokenCount = float64(tokens) / n
	stats.AvgResponseLength = float64(response) / n
	stats.TotalTokensUsed = tokens
	stats.ThreadsAccessed = len(threads)
}
