package unread

import (
	"fmt"

	"github.com/jballard86/frigate-push-gateway/internal/alerts"
)

// BadgeEmitter translates reconciled state into the device badge alert on
// the reserved badge slot. It holds no count of its own; the reconciler is
// the single source of truth.
type BadgeEmitter struct {
	notifier alerts.Notifier
	rec      *Reconciler
}

func NewBadgeEmitter(notifier alerts.Notifier, rec *Reconciler) *BadgeEmitter {
	return &BadgeEmitter{notifier: notifier, rec: rec}
}

// Apply posts or cancels the silent badge alert from the current effective
// count. Call after any reconciler mutation.
func (b *BadgeEmitter) Apply() {
	count := b.rec.EffectiveCount()
	if count <= 0 {
		b.notifier.Cancel(alerts.BadgeSlot)
		return
	}
	body := fmt.Sprintf("%d events", count)
	if count == 1 {
		body = "1 event"
	}
	b.notifier.Post(alerts.BadgeSlot, alerts.Alert{
		Title: "Unreviewed events",
		Body:  body,
		Badge: true,
		Count: count,
	})
}
