package buffer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("event buffer base URL not configured")

// maxImageBytes caps a single preview image download. The buffer serves
// notification crops well under this.
const maxImageBytes = 8 << 20

// Client is a thin REST client for the Frigate event buffer. A zero base URL
// is a valid state (the surrounding app may not be configured yet); every
// call then returns ErrNotConfigured and callers short-circuit silently.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// MediaURL resolves an API media path against the client base URL.
func (c *Client) MediaURL(path string) string {
	if !c.Configured() {
		// Absolute URLs still resolve even without a base.
		return MediaURL("", path)
	}
	return MediaURL(c.baseURL, path)
}

// Events fetches GET /events?filter=<filter>. filter is one of
// "unreviewed", "reviewed", "all".
func (c *Client) Events(ctx context.Context, filter string) (*EventsResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	u := c.baseURL + "/events"
	if filter != "" {
		u += "?filter=" + url.QueryEscape(filter)
	}
	var resp EventsResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UnreadCount fetches GET /api/events/unread_count.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	if !c.Configured() {
		return 0, ErrNotConfigured
	}
	var resp UnreadCountResponse
	if err := c.getJSON(ctx, c.baseURL+"/api/events/unread_count", &resp); err != nil {
		return 0, err
	}
	return resp.UnreadCount, nil
}

// MarkViewed calls POST /viewed/<event_path>.
func (c *Client) MarkViewed(ctx context.Context, eventPath string) error {
	return c.postAction(ctx, "/viewed/", eventPath)
}

// KeepEvent calls POST /keep/<event_path>, moving the event to saved.
func (c *Client) KeepEvent(ctx context.Context, eventPath string) error {
	return c.postAction(ctx, "/keep/", eventPath)
}

// DeleteEvent calls POST /delete/<event_path>, removing the event folder.
func (c *Client) DeleteEvent(ctx context.Context, eventPath string) error {
	return c.postAction(ctx, "/delete/", eventPath)
}

// RegisterDevice forwards a device push token to POST /api/mobile/register.
func (c *Client) RegisterDevice(ctx context.Context, token, platform string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	body, err := json.Marshal(RegisterDeviceRequest{Token: token, Platform: platform})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/mobile/register", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("register device: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// FetchImage downloads an image from a full URL (buffer media path or a
// public URL carried in a push payload).
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	if imageURL == "" {
		return nil, errors.New("empty image url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image %s: status %d", imageURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("fetch image %s: exceeds %d bytes", imageURL, maxImageBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fetch image %s: empty body", imageURL)
	}
	return data, nil
}

func (c *Client) postAction(ctx context.Context, route, eventPath string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	eventPath = strings.TrimLeft(eventPath, "/")
	if eventPath == "" {
		return errors.New("empty event path")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route+eventPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s%s: unexpected status %d", route, eventPath, resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", u, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", u, err)
	}
	return nil
}
