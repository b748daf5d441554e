// Package fs implements the liveness and recipient repositories on a single
// JSON document on disk.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// StateFileName is the default document name inside the state directory.
const StateFileName = "state.json"

var _ ports.Gateway = (*StateFile)(nil)

// document is the on-disk layout.
type document struct {
	Liveness   *livenessJSON `json:"liveness,omitempty"`
	Recipients []string      `json:"recipients"`
}

type livenessJSON struct {
	SignalPresent    *bool      `json:"signal_present"`
	LastHeartbeatAt  *time.Time `json:"last_heartbeat_at"`
	SignalLostAt     *time.Time `json:"signal_lost_at,omitempty"`
	SignalRestoredAt *time.Time `json:"signal_restored_at,omitempty"`
}

// StateFile is a ports.Gateway that keeps everything in one JSON file.
// Every write rewrites the whole document atomically.
type StateFile struct {
	path string
	mu   sync.Mutex
}

// NewStateFile creates a StateFile at path. The file is created on first write.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Path returns the full path to the state file.
func (f *StateFile) Path() string {
	return f.path
}

// LoadLiveness reads the liveness section. ok is false if none was saved.
func (f *StateFile) LoadLiveness(ctx context.Context) (domain.LivenessRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return domain.LivenessRecord{}, false, err
	}
	if doc.Liveness == nil {
		return domain.LivenessRecord{}, false, nil
	}

	l := doc.Liveness
	if l.SignalPresent == nil || l.LastHeartbeatAt == nil {
		return domain.LivenessRecord{}, false, fmt.Errorf("%w: missing required liveness fields", domain.ErrMalformedRecord)
	}
	rec := domain.LivenessRecord{
		SignalPresent:   *l.SignalPresent,
		LastHeartbeatAt: *l.LastHeartbeatAt,
	}
	if l.SignalLostAt != nil {
		rec.SignalLostAt = *l.SignalLostAt
	}
	if l.SignalRestoredAt != nil {
		rec.SignalRestoredAt = *l.SignalRestoredAt
	}
	return rec, true, nil
}

// SaveLiveness replaces the liveness section.
func (f *StateFile) SaveLiveness(ctx context.Context, rec domain.LivenessRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readForUpdate()
	if err != nil {
		return err
	}
	present := rec.SignalPresent
	last := rec.LastHeartbeatAt
	doc.Liveness = &livenessJSON{
		SignalPresent:    &present,
		LastHeartbeatAt:  &last,
		SignalLostAt:     timePtr(rec.SignalLostAt),
		SignalRestoredAt: timePtr(rec.SignalRestoredAt),
	}
	return f.write(doc)
}

// LoadRecipients returns the subscribed recipients in insertion order.
func (f *StateFile) LoadRecipients(ctx context.Context) ([]domain.RecipientID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	ids := make([]domain.RecipientID, 0, len(doc.Recipients))
	for _, r := range doc.Recipients {
		ids = append(ids, domain.RecipientID(r))
	}
	return ids, nil
}

// AddRecipient appends id. isNew is false if it already existed.
func (f *StateFile) AddRecipient(ctx context.Context, id domain.RecipientID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readForUpdate()
	if err != nil {
		return false, err
	}
	for _, r := range doc.Recipients {
		if r == string(id) {
			return false, nil
		}
	}
	doc.Recipients = append(doc.Recipients, string(id))
	return true, f.write(doc)
}

// RemoveRecipient deletes id. Missing ids are ignored.
func (f *StateFile) RemoveRecipient(ctx context.Context, id domain.RecipientID) error {
	return f.RemoveRecipients(ctx, []domain.RecipientID{id})
}

// RemoveRecipients deletes ids with a single rewrite.
func (f *StateFile) RemoveRecipients(ctx context.Context, ids []domain.RecipientID) error {
	if len(ids) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readForUpdate()
	if err != nil {
		return err
	}
	drop := domain.NewRecipientSet(ids...)
	kept := doc.Recipients[:0]
	for _, r := range doc.Recipients {
		if !drop.Contains(domain.RecipientID(r)) {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(doc.Recipients) {
		return nil
	}
	doc.Recipients = kept
	return f.write(doc)
}

// Close is a no-op; every write is already durable.
func (f *StateFile) Close() error {
	return nil
}

// read loads the document. A missing file is an empty document.
// Undecodable content is reported as domain.ErrMalformedRecord.
func (f *StateFile) read() (document, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return document{}, nil
		}
		return document{}, err
	}

	var doc document
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("%w: %s: %v", domain.ErrMalformedRecord, f.path, err)
	}
	return doc, nil
}

// readForUpdate is read, except that a malformed document is replaced
// rather than blocking every write.
func (f *StateFile) readForUpdate() (document, error) {
	doc, err := f.read()
	if err != nil {
		if isMalformed(err) {
			return document{}, nil
		}
		return document{}, err
	}
	return doc, nil
}

// write persists doc atomically (temp file, then rename).
func (f *StateFile) write(doc document) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	if doc.Recipients == nil {
		doc.Recipients = []string{}
	}

	data, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func isMalformed(err error) bool {
	return errors.Is(err, domain.ErrMalformedRecord)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
