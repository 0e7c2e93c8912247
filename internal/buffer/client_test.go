package buffer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientUnconfigured(t *testing.T) {
	c := NewClient("", time.Second)
	assert.False(t, c.Configured())

	_, err := c.Events(context.Background(), "all")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.UnreadCount(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, c.MarkViewed(context.Background(), "events/1"), ErrNotConfigured)
}

func TestClientEvents(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		assert.Equal(t, "unreviewed", r.URL.Query().Get("filter"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cameras":["driveway"],"total_count":1,"events":[{"event_id":"abc","camera":"driveway","threat_level":1}]}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	resp, err := c.Events(context.Background(), "unreviewed")
	require.NoError(t, err)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "abc", resp.Events[0].EventID)
	assert.Equal(t, 1, resp.Events[0].ThreatLevel)
}

func TestClientUnreadCount(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events/unread_count", r.URL.Path)
		w.Write([]byte(`{"unread_count":7}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	n, err := c.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestClientActions(t *testing.T) {
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		paths = append(paths, r.URL.Path)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	require.NoError(t, c.MarkViewed(context.Background(), "events/1"))
	require.NoError(t, c.KeepEvent(context.Background(), "/events/1"))
	require.NoError(t, c.DeleteEvent(context.Background(), "events/1"))
	assert.Equal(t, []string{"/viewed/events/1", "/keep/events/1", "/delete/events/1"}, paths)
}

func TestClientActionErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	assert.Error(t, c.MarkViewed(context.Background(), "events/1"))
}

func TestClientRegisterDevice(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/mobile/register", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	require.NoError(t, c.RegisterDevice(context.Background(), "tok-123", "android"))
}

func TestClientFetchImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("imagebytes"))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	data, err := c.FetchImage(context.Background(), ts.URL+"/snap.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("imagebytes"), data)
}

func TestClientFetchImageEmptyBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	_, err := c.FetchImage(context.Background(), ts.URL+"/snap.jpg")
	assert.Error(t, err)
}

func TestClientBaseURLTrimmed(t *testing.T) {
	c := NewClient("http://host:5000/", time.Second)
	assert.Equal(t, "http://host:5000/events/1/snap.jpg", c.MediaURL("events/1/snap.jpg"))
}
