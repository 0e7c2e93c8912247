package unread

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jballard86/frigate-push-gateway/internal/alerts"
	"github.com/jballard86/frigate-push-gateway/internal/buffer"
	"github.com/jballard86/frigate-push-gateway/internal/push"
)

// Upstream is the slice of the event-buffer client the unread path needs.
type Upstream interface {
	Events(ctx context.Context, filter string) (*buffer.EventsResponse, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkViewed(ctx context.Context, eventPath string) error
	KeepEvent(ctx context.Context, eventPath string) error
	DeleteEvent(ctx context.Context, eventPath string) error
	Configured() bool
}

// Service owns unread reconciliation against the buffer: the periodic count
// poll, the watchdog prune pass, and the user actions that feed the local
// overlay. One instance per process, constructed at startup and handed to
// the API layer.
type Service struct {
	up       Upstream
	rec      *Reconciler
	badge    *BadgeEmitter
	notifier alerts.Notifier
	cache    *push.ImageCache

	interval time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewService(up Upstream, rec *Reconciler, badge *BadgeEmitter, notifier alerts.Notifier, cache *push.ImageCache, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Service{
		up:       up,
		rec:      rec,
		badge:    badge,
		notifier: notifier,
		cache:    cache,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (s *Service) Reconciler() *Reconciler { return s.rec }

// Start launches the periodic reconcile loop.
func (s *Service) Start() {
	s.wg.Add(1)
	go s.runLoop()
}

func (s *Service) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *Service) runLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			if err := s.RefreshCount(ctx); err != nil {
				log.Printf("[WARN] Unread: count poll failed: %v", err)
			}
			if err := s.Watchdog(ctx); err != nil {
				log.Printf("[WARN] Unread: watchdog failed: %v", err)
			}
			cancel()
		}
	}
}

// RefreshCount polls the authoritative unread count and reapplies the
// badge. A failed poll keeps the previous count; the badge updates on the
// next pass.
func (s *Service) RefreshCount(ctx context.Context) error {
	if !s.up.Configured() {
		return nil
	}
	count, err := s.up.UnreadCount(ctx)
	if err != nil {
		return err
	}
	s.rec.RecordFetchedCount(count)
	s.badge.Apply()
	return nil
}

// Watchdog fetches the full listing and prunes the resolved overlay to ids
// that still exist, so the set stays bounded and server truth eventually
// wins outright.
func (s *Service) Watchdog(ctx context.Context) error {
	if !s.up.Configured() {
		return nil
	}
	resp, err := s.up.Events(ctx, string(FilterAll))
	if err != nil {
		return err
	}
	existing := make(map[string]struct{}, len(resp.Events))
	for _, ev := range resp.Events {
		existing[ev.EventID] = struct{}{}
	}
	s.rec.PruneTo(existing)
	s.badge.Apply()
	return nil
}

// ListEvents returns the buffer listing for mode with the local overlay
// applied (unreviewed mode hides just-resolved events immediately).
func (s *Service) ListEvents(ctx context.Context, mode FilterMode) (*buffer.EventsResponse, error) {
	resp, err := s.up.Events(ctx, string(mode))
	if err != nil {
		return nil, err
	}
	resp.Events = s.rec.DisplayList(resp.Events, mode)
	return resp, nil
}

// MarkReviewed performs the mark-reviewed action for a ce id: upstream
// call, optimistic overlay update, slot cancel, badge refresh. The slot is
// cancelled even when the upstream call fails, matching the notification
// action behavior (the user asked the alert to go away).
func (s *Service) MarkReviewed(ctx context.Context, ceID string) error {
	err := s.up.MarkViewed(ctx, eventPath(ceID))
	s.notifier.Cancel(push.SlotID(ceID))
	if err != nil {
		return fmt.Errorf("mark reviewed %s: %w", ceID, err)
	}
	s.rec.RecordResolved(ceID)
	s.badge.Apply()
	return nil
}

// Keep moves the event to saved and replaces its alert with a "Saved"
// confirmation on the same slot.
func (s *Service) Keep(ctx context.Context, ceID string) error {
	if err := s.up.KeepEvent(ctx, eventPath(ceID)); err != nil {
		return fmt.Errorf("keep %s: %w", ceID, err)
	}
	s.notifier.Post(push.SlotID(ceID), alerts.Alert{
		EventID: ceID,
		Title:   "Saved",
		Body:    "Event kept.",
	})
	return nil
}

// Delete removes the event upstream, drops it from the resolved overlay
// (deleted is gone, not read), evicts its cached image and cancels its
// slot.
func (s *Service) Delete(ctx context.Context, ceID string) error {
	if err := s.up.DeleteEvent(ctx, eventPath(ceID)); err != nil {
		return fmt.Errorf("delete %s: %w", ceID, err)
	}
	s.rec.RecordUnresolved(ceID)
	if s.cache != nil {
		s.cache.EvictByEventPath(eventPath(ceID))
	}
	s.notifier.Cancel(push.SlotID(ceID))
	s.badge.Apply()
	return nil
}

func eventPath(ceID string) string {
	return "events/" + ceID
}
