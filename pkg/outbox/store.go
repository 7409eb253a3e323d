// Package outbox is the durable FIFO of contact-form submissions that could
// not be delivered while the client was offline. Items are replayed against
// the origin on a "contact-retry" sync and deleted once delivered.
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound indicates no pending item has the given id.
var ErrNotFound = errors.New("outbox item not found")

const schema = `
CREATE TABLE IF NOT EXISTS pending (
	id         TEXT PRIMARY KEY,
	seq        INTEGER NOT NULL,
	path       TEXT NOT NULL,
	body       BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	attempts   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS pending_seq ON pending (seq);
`

// Item is one queued submission.
type Item struct {
	ID        string
	Seq       int64
	Path      string
	Body      []byte
	CreatedAt time.Time
	Attempts  int
}

// Store provides SQLite-backed outbox persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens an outbox SQLite store and creates its schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("outbox path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if n, err := store.Len(context.Background()); err == nil {
		pendingGauge.Set(float64(n))
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Enqueue appends a raw body for path to the end of the queue.
func (s *Store) Enqueue(ctx context.Context, path string, body []byte) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	if !strings.HasPrefix(path, "/") {
		return Item{}, fmt.Errorf("path must be absolute (got %q)", path)
	}
	if body == nil {
		body = []byte{}
	}

	item := Item{
		ID:        uuid.NewString(),
		Path:      path,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	// seq is assigned inside the insert so concurrent enqueues stay ordered
	err := s.sqlDB.QueryRowContext(ctx, `
INSERT INTO pending (id, seq, path, body, created_at, attempts)
SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, 0 FROM pending
RETURNING seq
`,
		item.ID,
		item.Path,
		item.Body,
		item.CreatedAt.UnixMilli(),
	).Scan(&item.Seq)
	if err != nil {
		return Item{}, fmt.Errorf("enqueue: %w", err)
	}

	pendingGauge.Inc()
	return item, nil
}

// Pending lists all queued items, oldest first.
func (s *Store) Pending(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, seq, path, body, created_at, attempts
FROM pending
ORDER BY seq ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			item      Item
			createdAt int64
		)
		if err := rows.Scan(&item.ID, &item.Seq, &item.Path, &item.Body, &createdAt, &item.Attempts); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		item.CreatedAt = time.UnixMilli(createdAt).UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending: %w", err)
	}
	return items, nil
}

// Len returns the number of queued items.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// Delete removes a delivered item.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM pending WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	pendingGauge.Dec()
	return nil
}

// markAttempt records a failed delivery attempt.
func (s *Store) markAttempt(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE pending SET attempts = attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark attempt %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
