package push

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/jballard86/frigate-push-gateway/internal/alerts"
	"github.com/jballard86/frigate-push-gateway/internal/metrics"
)

// DeliveryLog records notification side effects for the optional audit
// trail. A nil DeliveryLog disables it.
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, ceID string, phase string, slot int32, action string, hasImage bool) error
}

// Dispatcher routes classified lifecycle messages to phase handlers and
// enforces at-most-one active alert slot per event. Handlers never return
// errors: every failure is logged and degraded (text-only alert) at the task
// boundary, because a push message cannot be retried or NACKed.
type Dispatcher struct {
	notifier   alerts.Notifier
	resolver   *Resolver
	up         Upstream
	deliveries DeliveryLog

	wg sync.WaitGroup
}

func NewDispatcher(notifier alerts.Notifier, resolver *Resolver, up Upstream, deliveries DeliveryLog) *Dispatcher {
	return &Dispatcher{
		notifier:   notifier,
		resolver:   resolver,
		up:         up,
		deliveries: deliveries,
	}
}

// HandleRaw classifies a raw payload and dispatches it on a supervised
// task. This is the integration point for the message channel and the
// webhook; it never blocks on network I/O.
func (d *Dispatcher) HandleRaw(data map[string]string) {
	n := Classify(data)
	log.Printf("[DEBUG] Push: ce_id=%s phase=%s clear=%v", n.EventID, n.Phase, n.Clear)
	d.Go(func() {
		d.Dispatch(context.Background(), n)
	})
}

// Go runs fn on the dispatcher's supervised task group. A panicking task is
// logged and absorbed; no message handler may take the process down.
func (d *Dispatcher) Go(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[ERROR] Push: handler panic recovered: %v", r)
			}
		}()
		fn()
	}()
}

// Close waits for in-flight handlers to finish.
func (d *Dispatcher) Close() {
	d.wg.Wait()
}

// Dispatch applies the slot rules for one notification. Clear flag or a
// DISCARDED phase cancels the slot immediately (idempotent when absent);
// everything else routes to the phase handler, which posts exactly one
// alert to the deterministic slot so later phases replace earlier ones.
func (d *Dispatcher) Dispatch(ctx context.Context, n EventNotification) {
	if d.up == nil || !d.up.Configured() {
		// Configuration precondition, not an error: no buffer URL means
		// nothing to resolve against and nobody to alert.
		log.Printf("[WARN] Push: no event buffer configured, dropping ce_id=%s", n.EventID)
		metrics.PushMessagesTotal.WithLabelValues("unconfigured").Inc()
		return
	}

	slot := SlotID(n.EventID)

	if n.Clear || n.Phase == PhaseDiscarded {
		d.notifier.Cancel(slot)
		metrics.NotificationsCancelledTotal.Inc()
		metrics.PushMessagesTotal.WithLabelValues("ok").Inc()
		d.record(ctx, n, slot, "cancelled", false)
		return
	}

	switch n.Phase {
	case PhaseNew:
		d.handleNew(ctx, slot, n)
	case PhaseSnapshotReady:
		d.handleSnapshotReady(ctx, slot, n)
	case PhaseClipReady:
		d.handleClipReady(ctx, slot, n)
	case PhaseDiscarded:
		// Unreachable: cancelled above.
	case PhaseUnknown:
		log.Printf("[WARN] Push: UNKNOWN phase for ce_id=%s; expected NEW|SNAPSHOT_READY|CLIP_READY|DISCARDED", n.EventID)
		metrics.PushMessagesTotal.WithLabelValues("unknown_phase").Inc()
		return
	default:
		log.Printf("[ERROR] Push: unhandled phase %q for ce_id=%s", n.Phase, n.EventID)
		metrics.PushMessagesTotal.WithLabelValues("unknown_phase").Inc()
		return
	}
	metrics.PushMessagesTotal.WithLabelValues("ok").Inc()
}

// handleNew posts the initial "Motion Detected" alert with the live frame
// as a plain icon image.
func (d *Dispatcher) handleNew(ctx context.Context, slot int32, n EventNotification) {
	img := d.resolver.Resolve(ctx, n, n.LiveFrameProxy)
	body := "Security alert"
	if n.Camera != "" {
		body = fmt.Sprintf("Camera: %s", n.Camera)
	}
	a := alerts.Alert{
		EventID:     n.EventID,
		Title:       "Motion Detected",
		Body:        body,
		Camera:      n.Camera,
		ThreatLevel: n.ThreatLevel,
		Image:       img,
	}
	d.notifier.Post(slot, a)
	metrics.NotificationsPostedTotal.WithLabelValues(string(PhaseNew)).Inc()
	d.record(ctx, n, slot, "posted", img != nil)
}

// handleSnapshotReady replaces the slot with the cropped snapshot as a big
// picture.
func (d *Dispatcher) handleSnapshotReady(ctx context.Context, slot int32, n EventNotification) {
	img := d.resolver.Resolve(ctx, n, n.HostedSnapshot)
	title := "Snapshot ready"
	if n.Camera != "" {
		title = fmt.Sprintf("Snapshot: %s", n.Camera)
	}
	a := alerts.Alert{
		EventID:     n.EventID,
		Title:       title,
		Body:        "Cropped snapshot available",
		Camera:      n.Camera,
		ThreatLevel: n.ThreatLevel,
		Image:       img,
		BigPicture:  img != nil,
	}
	d.notifier.Post(slot, a)
	metrics.NotificationsPostedTotal.WithLabelValues(string(PhaseSnapshotReady)).Inc()
	d.record(ctx, n, slot, "posted", img != nil)
}

// handleClipReady replaces the slot with the AI title/description and the
// play / mark-reviewed / keep actions.
func (d *Dispatcher) handleClipReady(ctx context.Context, slot int32, n EventNotification) {
	img := d.resolver.Resolve(ctx, n, n.NotificationGIF)
	title := n.Title
	if title == "" {
		title = "Event ready"
	}
	body := n.Description
	if body == "" {
		body = "Tap to view"
	}
	a := alerts.Alert{
		EventID:     n.EventID,
		Title:       title,
		Body:        body,
		Camera:      n.Camera,
		ThreatLevel: n.ThreatLevel,
		Image:       img,
		BigPicture:  img != nil,
		ClipPath:    n.HostedClip,
		Actions:     []string{alerts.ActionPlay, alerts.ActionMarkReviewed, alerts.ActionKeep},
	}
	d.notifier.Post(slot, a)
	metrics.NotificationsPostedTotal.WithLabelValues(string(PhaseClipReady)).Inc()
	d.record(ctx, n, slot, "posted", img != nil)
}

func (d *Dispatcher) record(ctx context.Context, n EventNotification, slot int32, action string, hasImage bool) {
	if d.deliveries == nil {
		return
	}
	if err := d.deliveries.RecordDelivery(ctx, n.EventID, string(n.Phase), slot, action, hasImage); err != nil {
		log.Printf("[ERROR] Push: delivery log write failed for ce_id=%s: %v", n.EventID, err)
	}
}
