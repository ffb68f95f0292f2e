package statute

import (
	"time"

	"github.com/Mindburn-Labs/lexsim/pkg/event"
)

// Transitions returns the lifecycle events dated in (after, upTo], in date
// order. They are informational; effectiveness is always computed from the window.
func (t *Temporal) Transitions(after, upTo time.Time) []event.Event {
	within := func(d time.Time) bool {
		return !d.IsZero() && d.After(after) && !d.After(upTo)
	}

	var out []event.Event
	if within(t.Effective) {
		out = append(out, event.StatuteEffective{StatuteID: t.ID(), At: t.Effective})
	}
	for _, a := range t.amendments {
		if a.Date.After(upTo) {
			break
		}
		if within(a.Date) {
			out = append(out, event.StatuteAmended{StatuteID: t.ID(), At: a.Date, Version: a.Rule.Version})
		}
	}
	if within(t.Expiry) {
		out = append(out, event.StatuteExpired{StatuteID: t.ID(), At: t.Expiry})
	}
	return out
}
