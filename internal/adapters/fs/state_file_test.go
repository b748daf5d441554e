package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bft-labs/powerwatch/internal/domain"
)

func newTestStateFile(t *testing.T) *StateFile {
	t.Helper()
	return NewStateFile(filepath.Join(t.TempDir(), "state", StateFileName))
}

func TestStateFile_LoadMissing(t *testing.T) {
	f := newTestStateFile(t)

	_, ok, err := f.LoadLiveness(context.Background())
	if err != nil {
		t.Fatalf("LoadLiveness() error = %v", err)
	}
	if ok {
		t.Error("LoadLiveness() ok = true for a missing file")
	}

	ids, err := f.LoadRecipients(context.Background())
	if err != nil || len(ids) != 0 {
		t.Errorf("LoadRecipients() = %v, %v; want empty", ids, err)
	}
}

func TestStateFile_LivenessRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newTestStateFile(t)

	t0 := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	rec := domain.LivenessRecord{
		SignalPresent:    true,
		LastHeartbeatAt:  t0,
		SignalLostAt:     t0.Add(-time.Hour),
		SignalRestoredAt: t0.Add(-time.Minute),
	}
	if err := f.SaveLiveness(ctx, rec); err != nil {
		t.Fatalf("SaveLiveness() error = %v", err)
	}

	got, ok, err := NewStateFile(f.Path()).LoadLiveness(ctx)
	if err != nil || !ok {
		t.Fatalf("LoadLiveness() = _, %v, %v", ok, err)
	}
	if !got.Equal(rec) {
		t.Errorf("LoadLiveness() = %+v, want %+v", got, rec)
	}

	if _, err := os.Stat(f.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after atomic write")
	}
}

func TestStateFile_SectionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	f := newTestStateFile(t)

	if _, err := f.AddRecipient(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveLiveness(ctx, domain.DefaultLivenessRecord(time.Now())); err != nil {
		t.Fatal(err)
	}
	if _, err := f.AddRecipient(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	ids, err := f.LoadRecipients(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("LoadRecipients() = %v, want [a b]", ids)
	}
	if _, ok, _ := f.LoadLiveness(ctx); !ok {
		t.Error("liveness section lost by a recipient write")
	}
}

func TestStateFile_Recipients(t *testing.T) {
	ctx := context.Background()
	f := newTestStateFile(t)

	for _, id := range []domain.RecipientID{"1", "2", "3", "4"} {
		isNew, err := f.AddRecipient(ctx, id)
		if err != nil || !isNew {
			t.Fatalf("AddRecipient(%s) = %v, %v", id, isNew, err)
		}
	}
	if isNew, _ := f.AddRecipient(ctx, "2"); isNew {
		t.Error("duplicate AddRecipient reported new")
	}

	if err := f.RemoveRecipients(ctx, []domain.RecipientID{"1", "3", "9"}); err != nil {
		t.Fatal(err)
	}
	if err := f.RemoveRecipient(ctx, "missing"); err != nil {
		t.Fatal(err)
	}

	ids, _ := f.LoadRecipients(ctx)
	if len(ids) != 2 || ids[0] != "2" || ids[1] != "4" {
		t.Errorf("LoadRecipients() = %v, want [2 4]", ids)
	}
}

func TestStateFile_Malformed(t *testing.T) {
	ctx := context.Background()
	f := newTestStateFile(t)

	if err := os.MkdirAll(filepath.Dir(f.Path()), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := f.LoadLiveness(ctx); !isMalformed(err) {
		t.Fatalf("LoadLiveness() error = %v, want ErrMalformedRecord", err)
	}

	// A write replaces the broken document.
	if err := f.SaveLiveness(ctx, domain.DefaultLivenessRecord(time.Now())); err != nil {
		t.Fatalf("SaveLiveness() error = %v", err)
	}
	if _, ok, err := f.LoadLiveness(ctx); err != nil || !ok {
		t.Errorf("LoadLiveness() after repair = %v, %v", ok, err)
	}
}

func TestStateFile_MissingFields(t *testing.T) {
	f := newTestStateFile(t)
	if err := os.MkdirAll(filepath.Dir(f.Path()), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.Path(), []byte(`{"liveness":{"signal_present":true},"recipients":[]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := f.LoadLiveness(context.Background()); !isMalformed(err) {
		t.Errorf("LoadLiveness() error = %v, want ErrMalformedRecord", err)
	}
}
