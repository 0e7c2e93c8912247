package push

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/codeGROOVE-dev/retry"

	"github.com/jballard86/frigate-push-gateway/internal/buffer"
	"github.com/jballard86/frigate-push-gateway/internal/metrics"
)

var (
	errEventNotFound = errors.New("event not found for candidate id")
	errNoMediaPath   = errors.New("event has no snapshot or clip path")
)

// Upstream is the slice of the event-buffer client the push path needs.
// *buffer.Client satisfies it; tests substitute fakes.
type Upstream interface {
	Configured() bool
	Events(ctx context.Context, filter string) (*buffer.EventsResponse, error)
	MediaURL(path string) string
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// Resolver loads the preview image for a notification, walking a fallback
// chain and caching whatever it finds for later phases of the same event.
type Resolver struct {
	cache *ImageCache
	up    Upstream

	// WakeDelay is the pause before the first API lookup; a push wake can
	// race the device's VPN becoming the default route. RetryDelay is the
	// pause before the single API retry.
	WakeDelay  time.Duration
	RetryDelay time.Duration
}

func NewResolver(cache *ImageCache, up Upstream) *Resolver {
	return &Resolver{
		cache:      cache,
		up:         up,
		WakeDelay:  2 * time.Second,
		RetryDelay: 1500 * time.Millisecond,
	}
}

// Resolve returns the image for n, or nil if every source fails (the caller
// then posts a text-only alert). primaryPath is the phase-specific proxy
// path from the payload; the cropped snapshot path is the shared fallback.
//
// Chain, stopping at first success:
//  1. cache (fresh within TTL)
//  2. public image URL carried in the payload
//  3. upstream event list lookup (same source as the events tab), one retry
//  4. payload proxy paths (primary, then normalized cropped path)
func (r *Resolver) Resolve(ctx context.Context, n EventNotification, primaryPath string) []byte {
	if img := r.cache.Get(n.EventID); img != nil {
		metrics.ImageSourceTotal.WithLabelValues("cache").Inc()
		return img
	}

	var img []byte
	source := "none"

	if u := n.ImageURL; u != "" && (strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")) {
		img = r.fetch(ctx, u)
		if img != nil {
			source = "payload_url"
		}
	}

	if img == nil {
		sleep(ctx, r.WakeDelay)
		img = r.fromEventList(ctx, n.EventID)
		if img != nil {
			source = "api"
		}
	}

	if img == nil {
		img = r.fromProxyPaths(ctx, primaryPath, n.CroppedImageURL)
		if img != nil {
			source = "proxy"
		}
	}

	metrics.ImageSourceTotal.WithLabelValues(source).Inc()
	if img == nil {
		log.Printf("[WARN] Notification image: all sources failed for ce_id=%s", n.EventID)
		return nil
	}
	r.cache.Put(n.EventID, img)
	return img
}

// fromEventList queries the buffer's event list, matches the candidate id
// and loads the event's canonical snapshot (clip path as fallback). One
// retry after a short delay tolerates the network path still settling.
func (r *Resolver) fromEventList(ctx context.Context, candidateID string) []byte {
	var img []byte
	err := retry.Do(
		func() error {
			resp, err := r.up.Events(ctx, "all")
			if err != nil {
				return err
			}
			// Not-found and no-path are retryable: the listing is
			// eventually consistent and the push usually wins the race.
			ev, ok := buffer.FindByCandidate(resp.Events, candidateID)
			if !ok {
				log.Printf("[WARN] Notification image: event not found for ce_id=%s", candidateID)
				return errEventNotFound
			}
			path := ev.HostedSnapshot
			if path == "" {
				path = ev.HostedClip
			}
			if path == "" {
				log.Printf("[WARN] Notification image: no snapshot/clip path for ce_id=%s", candidateID)
				return errNoMediaPath
			}
			data, err := r.up.FetchImage(ctx, r.up.MediaURL(path))
			if err != nil {
				return err
			}
			img = data
			return nil
		},
		retry.Attempts(2),
		retry.Delay(r.RetryDelay),
		retry.MaxDelay(r.RetryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil || !decodes(img) {
		return nil
	}
	return img
}

func (r *Resolver) fromProxyPaths(ctx context.Context, primary, cropped string) []byte {
	if img := r.fetch(ctx, r.up.MediaURL(primary)); img != nil {
		return img
	}
	return r.fetch(ctx, r.up.MediaURL(buffer.NormalizeEventMediaPath(cropped)))
}

func (r *Resolver) fetch(ctx context.Context, url string) []byte {
	if url == "" {
		return nil
	}
	data, err := r.up.FetchImage(ctx, url)
	if err != nil {
		log.Printf("[DEBUG] Notification image: fetch %s: %v", url, err)
		return nil
	}
	if !decodes(data) {
		log.Printf("[DEBUG] Notification image: %s is not a decodable image", url)
		return nil
	}
	return data
}

// decodes rejects payloads that aren't real images, e.g. an HTML error page
// served with status 200, so they never enter the cache.
func decodes(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	_, _, err := image.DecodeConfig(bytes.NewReader(data))
	return err == nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
