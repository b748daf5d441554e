package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/hako/durafmt"

	"github.com/bft-labs/powerwatch/internal/domain"
)

// DefaultTimezone is used to render wall-clock times.
const DefaultTimezone = "Europe/Kyiv"

// Renderer turns liveness data into chat messages (Discord markdown).
type Renderer struct {
	loc *time.Location
}

// NewRenderer creates a renderer printing clock times in loc (UTC if nil).
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc}
}

// LoadLocation resolves an IANA timezone name, falling back to UTC.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// FormatDuration renders d at minute resolution, e.g. "2 hours 5 minutes".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}
	return durafmt.Parse(d.Truncate(time.Minute)).LimitFirstN(2).String()
}

// EventMessage renders the broadcast text for ev.
func (r *Renderer) EventMessage(ev domain.Event) string {
	switch ev.Kind {
	case domain.SignalLost:
		return "🔴 **Power is out!**\n\nThe sensor stopped reporting."
	case domain.SignalRestored:
		return fmt.Sprintf("💡 **Power is back!**\n\nIt was out for %s.", FormatDuration(ev.OutageDuration))
	default:
		return ""
	}
}

// Summary renders the short "check" status.
func (r *Renderer) Summary(rec domain.LivenessRecord, now time.Time) string {
	if rec.SignalPresent {
		var b strings.Builder
		b.WriteString("✅ **Power is on.**\n\n⏰ Last signal: ")
		b.WriteString(rec.LastHeartbeatAt.In(r.loc).Format("15:04:05"))
		if mins := int(rec.SinceLastHeartbeat(now) / time.Minute); mins > 0 {
			fmt.Fprintf(&b, "\n(%d min ago)", mins)
		}
		return b.String()
	}

	if rec.SignalLostAt.IsZero() {
		return "❌ **Power is off.**"
	}
	return fmt.Sprintf("❌ **Power is off.**\n\n⏰ Lost at: %s\n⏳ Off for %s",
		rec.SignalLostAt.In(r.loc).Format("15:04"),
		FormatDuration(rec.AbsentFor(now)),
	)
}

// Detail renders the extended "details" status.
func (r *Renderer) Detail(rec domain.LivenessRecord, now time.Time, timeout time.Duration, subscribers int) string {
	state := "✅ Power is on"
	if !rec.SignalPresent {
		state = "❌ Power is off"
	}

	var b strings.Builder
	b.WriteString("📊 **Details**\n\n")
	fmt.Fprintf(&b, "State: %s\n", state)
	fmt.Fprintf(&b, "Last ping: %s\n", rec.LastHeartbeatAt.In(r.loc).Format("02.01 15:04:05"))
	fmt.Fprintf(&b, "Timeout: %s\n", FormatDuration(timeout))
	if subscribers >= 0 {
		fmt.Fprintf(&b, "Subscribers: %d", subscribers)
	} else {
		b.WriteString("Subscribers: unknown")
	}
	if !rec.SignalPresent && !rec.SignalLostAt.IsZero() {
		fmt.Fprintf(&b, "\nLost at: %s\nDuration: %s",
			rec.SignalLostAt.In(r.loc).Format("02.01 15:04"),
			FormatDuration(rec.AbsentFor(now)),
		)
	}
	return b.String()
}
