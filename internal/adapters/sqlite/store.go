// Package sqlite implements the liveness and recipient repositories on a
// single SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// livenessRowID is the primary key of the singleton liveness row.
const livenessRowID = 1

var _ ports.Gateway = (*Store)(nil)

// Store is a ports.Gateway backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_foreign_keys=1&_journal=WAL")
	if err != nil {
		return nil, err
	}
	// modernc.org/sqlite does not like concurrent writers on one file.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS liveness_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			signal_present INTEGER NOT NULL,
			last_heartbeat_at INTEGER NOT NULL,
			signal_lost_at INTEGER,
			signal_restored_at INTEGER,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		return err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS subscribers (
			recipient_id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL
		)
	`); err != nil {
		return err
	}
	return nil
}

// LoadLiveness reads the singleton record. ok is false if none was saved.
func (s *Store) LoadLiveness(ctx context.Context) (domain.LivenessRecord, bool, error) {
	var (
		present            int64
		lastHB             int64
		lostAt, restoredAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT signal_present, last_heartbeat_at, signal_lost_at, signal_restored_at
		FROM liveness_state WHERE id = ?`, livenessRowID,
	).Scan(&present, &lastHB, &lostAt, &restoredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LivenessRecord{}, false, nil
	}
	if err != nil {
		return domain.LivenessRecord{}, false, err
	}

	if present != 0 && present != 1 {
		return domain.LivenessRecord{}, false, fmt.Errorf("%w: signal_present=%d", domain.ErrMalformedRecord, present)
	}
	if lastHB <= 0 {
		return domain.LivenessRecord{}, false, fmt.Errorf("%w: last_heartbeat_at=%d", domain.ErrMalformedRecord, lastHB)
	}

	return domain.LivenessRecord{
		SignalPresent:    present == 1,
		LastHeartbeatAt:  time.Unix(0, lastHB),
		SignalLostAt:     fromNull(lostAt),
		SignalRestoredAt: fromNull(restoredAt),
	}, true, nil
}

// SaveLiveness upserts the singleton record.
func (s *Store) SaveLiveness(ctx context.Context, rec domain.LivenessRecord) error {
	present := 0
	if rec.SignalPresent {
		present = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO liveness_state (id, signal_present, last_heartbeat_at, signal_lost_at, signal_restored_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			signal_present = excluded.signal_present,
			last_heartbeat_at = excluded.last_heartbeat_at,
			signal_lost_at = excluded.signal_lost_at,
			signal_restored_at = excluded.signal_restored_at,
			updated_at = excluded.updated_at`,
		livenessRowID, present, rec.LastHeartbeatAt.UnixNano(),
		toNull(rec.SignalLostAt), toNull(rec.SignalRestoredAt), s.now().UnixNano(),
	)
	return err
}

// LoadRecipients returns every subscribed recipient, oldest first.
func (s *Store) LoadRecipients(ctx context.Context) ([]domain.RecipientID, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT recipient_id FROM subscribers ORDER BY created_at, recipient_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []domain.RecipientID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, domain.RecipientID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// AddRecipient inserts id. isNew is false if it already existed.
func (s *Store) AddRecipient(ctx context.Context, id domain.RecipientID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO subscribers (recipient_id, created_at) VALUES (?, ?)",
		string(id), s.now().UnixNano(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RemoveRecipient deletes id. Missing ids are ignored.
func (s *Store) RemoveRecipient(ctx context.Context, id domain.RecipientID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM subscribers WHERE recipient_id = ?", string(id))
	return err
}

// RemoveRecipients deletes ids in one transaction.
func (s *Store) RemoveRecipients(ctx context.Context, ids []domain.RecipientID) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM subscribers WHERE recipient_id = ?")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, string(id)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func toNull(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNull(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(0, v.Int64)
}
