package unread

import (
	"strings"
	"sync"

	"github.com/jballard86/frigate-push-gateway/internal/buffer"
	"github.com/jballard86/frigate-push-gateway/internal/metrics"
)

// FilterMode selects which events the display list shows.
type FilterMode string

const (
	FilterUnreviewed FilterMode = "unreviewed"
	FilterReviewed   FilterMode = "reviewed"
	FilterAll        FilterMode = "all"
)

// Reconciler is the single source of truth for unread-event state, shared by
// the badge and the event list. The buffer owns the count; this process owns
// which specific ids the user has resolved since the last poll. The
// effective count is always recomputed from both, never stored, which avoids
// double-counting when a server poll already reflects a resolution the user
// just performed.
//
// State is process-scoped and rebuilt from the server after a restart. All
// mutation goes through one mutex; reads take the same lock briefly and
// return consistent snapshots.
type Reconciler struct {
	mu       sync.Mutex
	fetched  int
	resolved map[string]struct{}
}

func NewReconciler() *Reconciler {
	return &Reconciler{resolved: make(map[string]struct{})}
}

// canonicalID strips the push-candidate prefix so ids from notification
// actions ("ce_X") and ids from the buffer listing ("X") land on one key.
func canonicalID(id string) string {
	return strings.TrimPrefix(id, buffer.CandidatePrefix)
}

// RecordFetchedCount stores the server-authoritative unread count. Call
// after each successful poll of the unread-count endpoint.
func (r *Reconciler) RecordFetchedCount(n int) {
	r.mu.Lock()
	r.fetched = n
	r.publishLocked()
	r.mu.Unlock()
}

// RecordResolved marks an event id as reviewed locally. Set semantics:
// recording the same id twice is the same as once.
func (r *Reconciler) RecordResolved(id string) {
	id = canonicalID(id)
	if id == "" {
		return
	}
	r.mu.Lock()
	r.resolved[id] = struct{}{}
	r.publishLocked()
	r.mu.Unlock()
}

// RecordUnresolved removes an id from the resolved set. Used on delete: a
// deleted event is gone, not "read", so it must stop suppressing the count.
func (r *Reconciler) RecordUnresolved(id string) {
	r.mu.Lock()
	delete(r.resolved, canonicalID(id))
	r.publishLocked()
	r.mu.Unlock()
}

// PruneTo intersects the resolved set with the ids that still exist
// upstream, bounding growth. Invoked by the watchdog after each full-list
// fetch so ids for since-deleted events don't linger.
func (r *Reconciler) PruneTo(existing map[string]struct{}) {
	keep := make(map[string]struct{}, len(existing))
	for id := range existing {
		keep[canonicalID(id)] = struct{}{}
	}
	r.mu.Lock()
	for id := range r.resolved {
		if _, ok := keep[id]; !ok {
			delete(r.resolved, id)
		}
	}
	r.publishLocked()
	r.mu.Unlock()
}

// EffectiveCount is max(0, lastFetched - |resolved|).
func (r *Reconciler) EffectiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.effectiveLocked()
}

// ResolvedIDs returns a copy of the locally-resolved set.
func (r *Reconciler) ResolvedIDs() map[string]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]struct{}, len(r.resolved))
	for id := range r.resolved {
		out[id] = struct{}{}
	}
	return out
}

// DisplayList applies the local overlay to a server-returned list. In
// unreviewed mode, just-resolved events disappear immediately instead of
// waiting for the next poll; the badge derives from the same overlay so
// list and badge stay consistent. Other modes pass through.
func (r *Reconciler) DisplayList(events []buffer.Event, mode FilterMode) []buffer.Event {
	if mode != FilterUnreviewed {
		return events
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]buffer.Event, 0, len(events))
	for _, ev := range events {
		if _, ok := r.resolved[canonicalID(ev.EventID)]; ok {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (r *Reconciler) effectiveLocked() int {
	n := r.fetched - len(r.resolved)
	if n < 0 {
		return 0
	}
	return n
}

func (r *Reconciler) publishLocked() {
	metrics.UnreadEffective.Set(float64(r.effectiveLocked()))
}
