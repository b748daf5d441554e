package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

var errStoreDown = errors.New("store unreachable")

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

// memStore is an in-memory ports.Gateway with failure injection.
type memStore struct {
	mu sync.Mutex

	rec    domain.LivenessRecord
	hasRec bool
	saves  int

	recipients  domain.RecipientSet
	removeCalls [][]domain.RecipientID

	// loadErr is returned by LoadLiveness for the first loadFailures calls
	// (every call when loadFailures < 0).
	loadErr      error
	loadFailures int
	loadCalls    int

	saveErr       error
	savePanic     bool
	// saveGate, when set, holds the next SaveLiveness call until closed.
	// saveEntered is closed once that call is waiting.
	saveGate    chan struct{}
	saveEntered chan struct{}
	recipientsErr error
	removeErr     error
}

var _ ports.Gateway = (*memStore)(nil)

func newMemStore(ids ...domain.RecipientID) *memStore {
	return &memStore{recipients: domain.NewRecipientSet(ids...)}
}

func (m *memStore) LoadLiveness(ctx context.Context) (domain.LivenessRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls++
	if m.loadErr != nil && (m.loadFailures < 0 || m.loadCalls <= m.loadFailures) {
		return domain.LivenessRecord{}, false, m.loadErr
	}
	return m.rec, m.hasRec, nil
}

func (m *memStore) SaveLiveness(ctx context.Context, rec domain.LivenessRecord) error {
	m.mu.Lock()
	gate, entered := m.saveGate, m.saveEntered
	m.saveGate, m.saveEntered = nil, nil
	m.mu.Unlock()
	if gate != nil {
		close(entered)
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.savePanic {
		panic("save exploded")
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	m.rec = rec
	m.hasRec = true
	m.saves++
	return nil
}

func (m *memStore) saved() (domain.LivenessRecord, bool, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec, m.hasRec, m.saves
}

func (m *memStore) setSaveErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

func (m *memStore) LoadRecipients(ctx context.Context) ([]domain.RecipientID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recipientsErr != nil {
		return nil, m.recipientsErr
	}
	return m.recipients.Slice(), nil
}

func (m *memStore) AddRecipient(ctx context.Context, id domain.RecipientID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recipientsErr != nil {
		return false, m.recipientsErr
	}
	return m.recipients.Add(id), nil
}

func (m *memStore) RemoveRecipient(ctx context.Context, id domain.RecipientID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recipientsErr != nil {
		return m.recipientsErr
	}
	m.recipients.Remove(id)
	return nil
}

func (m *memStore) RemoveRecipients(ctx context.Context, ids []domain.RecipientID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removeCalls = append(m.removeCalls, append([]domain.RecipientID(nil), ids...))
	m.recipients.Remove(ids...)
	return nil
}

func (m *memStore) has(id domain.RecipientID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recipients.Contains(id)
}

func (m *memStore) Close() error { return nil }

// recordingDeliverer records deliveries and fails for ids in fail.
type recordingDeliverer struct {
	mu        sync.Mutex
	fail      map[domain.RecipientID]bool
	delivered map[domain.RecipientID][]string
	attempts  map[domain.RecipientID]int
}

func newRecordingDeliverer(fail ...domain.RecipientID) *recordingDeliverer {
	d := &recordingDeliverer{
		fail:      map[domain.RecipientID]bool{},
		delivered: map[domain.RecipientID][]string{},
		attempts:  map[domain.RecipientID]int{},
	}
	for _, id := range fail {
		d.fail[id] = true
	}
	return d
}

func (d *recordingDeliverer) Deliver(ctx context.Context, to domain.RecipientID, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts[to]++
	if d.fail[to] {
		return domain.ErrDeliveryFailed
	}
	d.delivered[to] = append(d.delivered[to], message)
	return nil
}

func (d *recordingDeliverer) attemptsFor(id domain.RecipientID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts[id]
}

func (d *recordingDeliverer) messagesFor(id domain.RecipientID) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.delivered[id]...)
}
