// Package snapshot stores serialized dialogue sessions so a visitor can pick
// up where they left off.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/macworld/concierge/internal/conversation"
	"github.com/macworld/concierge/internal/db"
)

// SQLiteStore keeps snapshots in the session_snapshots table.
type SQLiteStore struct {
	db  *db.DB
	now func() time.Time
}

// NewSQLiteStore creates a store backed by the given database.
func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database, now: time.Now}
}

func (s *SQLiteStore) Read(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM session_snapshots
		WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, s.stamp(s.now()),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", key, err)
	}
	return data, nil
}

func (s *SQLiteStore) Write(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := s.now()
	var expires sql.NullString
	if ttl > 0 {
		expires = sql.NullString{String: s.stamp(now.Add(ttl)), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_snapshots (key, data, version, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			version = excluded.version,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		key, data, conversation.SnapshotVersion, s.stamp(now), expires,
	)
	if err != nil {
		return fmt.Errorf("writing snapshot %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session_snapshots WHERE key = ?", key); err != nil {
		return fmt.Errorf("clearing snapshot %s: %w", key, err)
	}
	return nil
}

// Purge deletes every expired snapshot and reports how many were removed.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM session_snapshots WHERE expires_at IS NOT NULL AND expires_at <= ?",
		s.stamp(s.now()))
	if err != nil {
		return 0, fmt.Errorf("purging snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Keys lists the stored session keys that have not expired, newest first.
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM session_snapshots
		WHERE expires_at IS NULL OR expires_at > ?
		ORDER BY updated_at DESC`, s.stamp(s.now()))
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning snapshot key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05.000")
}
