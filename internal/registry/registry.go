// Package registry tracks devices registered for push delivery. The buffer
// server owns the actual push-token fan-out; the gateway keeps its own
// registry so it can issue feed credentials, report device counts and prune
// stale registrations.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// RegistrationTTL matches push-token staleness: a device silent this
	// long has almost certainly rotated its token or been wiped.
	RegistrationTTL = 60 * 24 * time.Hour

	deviceKeyFmt = "device:%s"
	indexKey     = "devices"
)

var ErrEmptyToken = errors.New("empty push token")

// Device is one registration.
type Device struct {
	ID           string    `json:"id"`
	Platform     string    `json:"platform,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

type Registry struct {
	client *redis.Client
}

func NewRegistry(client *redis.Client) *Registry {
	return &Registry{client: client}
}

// DeviceID derives the stable registry id for a push token. Tokens are
// secrets, so only the digest is stored or logged.
func DeviceID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

// Register upserts a device registration and returns its id. Re-registering
// refreshes last_seen and the TTL.
func (r *Registry) Register(ctx context.Context, token, platform string) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}
	id := DeviceID(token)
	key := fmt.Sprintf(deviceKeyFmt, id)
	now := time.Now()

	pipe := r.client.Pipeline()
	pipe.HSetNX(ctx, key, "registered_at", now.Unix())
	pipe.HSet(ctx, key, "platform", platform, "last_seen", now.Unix())
	pipe.Expire(ctx, key, RegistrationTTL)
	pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(now.Unix()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return id, nil
}

// Touch refreshes last_seen for a known device (e.g. on feed connect).
func (r *Registry) Touch(ctx context.Context, deviceID string) error {
	key := fmt.Sprintf(deviceKeyFmt, deviceID)
	now := time.Now()
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, "last_seen", now.Unix())
	pipe.Expire(ctx, key, RegistrationTTL)
	pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(now.Unix()), Member: deviceID})
	_, err := pipe.Exec(ctx)
	return err
}

// List returns all current registrations, most recently seen last.
func (r *Registry) List(ctx context.Context) ([]Device, error) {
	ids, err := r.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Device, 0, len(ids))
	for _, id := range ids {
		fields, err := r.client.HGetAll(ctx, fmt.Sprintf(deviceKeyFmt, id)).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			// Hash expired but index entry lingered; drop it.
			r.client.ZRem(ctx, indexKey, id)
			continue
		}
		out = append(out, Device{
			ID:           id,
			Platform:     fields["platform"],
			RegisteredAt: unixField(fields["registered_at"]),
			LastSeenAt:   unixField(fields["last_seen"]),
		})
	}
	return out, nil
}

// Count returns the number of indexed registrations.
func (r *Registry) Count(ctx context.Context) (int64, error) {
	return r.client.ZCard(ctx, indexKey).Result()
}

// Prune removes registrations not seen within RegistrationTTL.
func (r *Registry) Prune(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-RegistrationTTL).Unix()
	ids, err := r.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", cutoff),
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	pipe := r.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, fmt.Sprintf(deviceKeyFmt, id))
		pipe.ZRem(ctx, indexKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func unixField(s string) time.Time {
	var sec int64
	_, err := fmt.Sscanf(s, "%d", &sec)
	if err != nil || sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
