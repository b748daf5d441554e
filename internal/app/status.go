package app

import (
	"context"
	"time"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// Status answers status queries from the HTTP and chat layers.
type Status struct {
	liveness   *Liveness
	monitor    *Monitor
	recipients ports.RecipientRepository
	renderer   *Renderer
	logger     ports.Logger
	now        func() time.Time
}

// NewStatus creates a status view.
func NewStatus(liveness *Liveness, monitor *Monitor, recipients ports.RecipientRepository, renderer *Renderer, logger ports.Logger, now func() time.Time) *Status {
	if now == nil {
		now = time.Now
	}
	return &Status{
		liveness:   liveness,
		monitor:    monitor,
		recipients: recipients,
		renderer:   renderer,
		logger:     logger,
		now:        now,
	}
}

// CurrentStatus returns the machine-readable status. A recipient store
// failure degrades RecipientCount to -1 instead of failing the query.
func (s *Status) CurrentStatus(ctx context.Context) domain.Status {
	rec := s.liveness.Snapshot()
	return domain.Status{
		SignalPresent:             rec.SignalPresent,
		SecondsSinceLastHeartbeat: int64(rec.SinceLastHeartbeat(s.now()) / time.Second),
		RecipientCount:            s.recipientCount(ctx),
	}
}

// SummaryText renders the short human-readable status.
func (s *Status) SummaryText() string {
	return s.renderer.Summary(s.liveness.Snapshot(), s.now())
}

// DetailText renders the detailed human-readable status.
func (s *Status) DetailText(ctx context.Context) string {
	return s.renderer.Detail(s.liveness.Snapshot(), s.now(), s.monitor.Timeout(), s.recipientCount(ctx))
}

func (s *Status) recipientCount(ctx context.Context) int {
	ids, err := s.recipients.LoadRecipients(ctx)
	if err != nil {
		s.logger.Error("failed to count recipients", ports.Err(err))
		return -1
	}
	return len(ids)
}
