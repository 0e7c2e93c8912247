package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jballard86/frigate-push-gateway/internal/alerts"
	"github.com/jballard86/frigate-push-gateway/internal/api"
	"github.com/jballard86/frigate-push-gateway/internal/buffer"
	"github.com/jballard86/frigate-push-gateway/internal/push"
	"github.com/jballard86/frigate-push-gateway/internal/registry"
	"github.com/jballard86/frigate-push-gateway/internal/tokens"
	"github.com/jballard86/frigate-push-gateway/internal/unread"
)

// fakeBufferServer serves the handful of buffer endpoints the gateway calls.
func fakeBufferServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(buffer.EventsResponse{
			Cameras:    []string{"driveway"},
			TotalCount: 2,
			Events: []buffer.Event{
				{EventID: "abc", Camera: "driveway", HostedSnapshot: "events/abc/snapshot.jpg"},
				{EventID: "x", Camera: "events", Subdir: "def", HostedClip: "events/def/clip.mp4"},
			},
		})
	})
	mux.HandleFunc("/api/events/unread_count", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(buffer.UnreadCountResponse{UnreadCount: 2})
	})
	mux.HandleFunc("/api/mobile/register", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(buffer.RegisterDeviceResponse{Status: "ok"})
	})
	mux.HandleFunc("/viewed/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/keep/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/delete/", func(w http.ResponseWriter, r *http.Request) {})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

type gatewayFixture struct {
	router     chi.Router
	tokens     *tokens.Manager
	hub        *alerts.Hub
	dispatcher *push.Dispatcher
	unread     *unread.Service
}

func newGateway(t *testing.T) *gatewayFixture {
	t.Helper()
	bufSrv := fakeBufferServer(t)
	client := buffer.NewClient(bufSrv.URL, time.Second)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	reg := registry.NewRegistry(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	tokenMgr := tokens.NewManager("test-key")
	hub := alerts.NewHub(tokenMgr)
	cache := push.NewImageCache(1 << 20)
	resolver := push.NewResolver(cache, client)
	resolver.WakeDelay = 0
	resolver.RetryDelay = 0
	dispatcher := push.NewDispatcher(hub, resolver, client, nil)

	rec := unread.NewReconciler()
	badge := unread.NewBadgeEmitter(hub, rec)
	unreadSvc := unread.NewService(client, rec, badge, hub, cache, time.Minute)

	h := &api.Handler{
		Buffer:        client,
		Dispatcher:    dispatcher,
		Unread:        unreadSvc,
		Hub:           hub,
		Tokens:        tokenMgr,
		Registry:      reg,
		WebhookSecret: "hook-secret",
	}
	r := chi.NewRouter()
	h.Register(r)
	return &gatewayFixture{router: r, tokens: tokenMgr, hub: hub, dispatcher: dispatcher, unread: unreadSvc}
}

func (g *gatewayFixture) authedRequest(t *testing.T, method, target string, body []byte) *http.Request {
	t.Helper()
	tok, err := g.tokens.GenerateDeviceToken("device-1", "android", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tok)
	return req
}

func TestHealth(t *testing.T) {
	g := newGateway(t)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["buffer_configured"])
}

func TestPushWebhookAuth(t *testing.T) {
	g := newGateway(t)

	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/push", bytes.NewReader([]byte(`{}`))))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "missing secret rejected")

	req := httptest.NewRequest("POST", "/api/v1/push", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Push-Secret", "wrong")
	w = httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPushWebhookDispatches(t *testing.T) {
	g := newGateway(t)

	payload := []byte(`{"ce_id":"ce_abc","phase":"clip_ready","title":"Person at door"}`)
	req := httptest.NewRequest("POST", "/api/v1/push", bytes.NewReader(payload))
	req.Header.Set("X-Push-Secret", "hook-secret")
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	g.dispatcher.Close()
	assert.Contains(t, g.hub.ActiveSlots(), push.SlotID("ce_abc"))
}

func TestPushWebhookBadPayload(t *testing.T) {
	g := newGateway(t)
	req := httptest.NewRequest("POST", "/api/v1/push", bytes.NewReader([]byte(`{"nested":{"a":1}}`)))
	req.Header.Set("X-Push-Secret", "hook-secret")
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterDeviceIssuesToken(t *testing.T) {
	g := newGateway(t)

	body, _ := json.Marshal(buffer.RegisterDeviceRequest{Token: "push-tok-1", Platform: "android"})
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/mobile/register", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, registry.DeviceID("push-tok-1"), resp["device_id"])
	require.NotEmpty(t, resp["token"])

	// The issued token opens the protected routes.
	req := httptest.NewRequest("GET", "/api/v1/events", nil)
	req.Header.Set("Authorization", "Bearer "+resp["token"])
	w = httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterDeviceRequiresToken(t *testing.T) {
	g := newGateway(t)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/mobile/register", bytes.NewReader([]byte(`{}`))))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventsRequireAuth(t *testing.T) {
	g := newGateway(t)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/events", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListEvents(t *testing.T) {
	g := newGateway(t)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, g.authedRequest(t, "GET", "/api/v1/events?filter=all", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp buffer.EventsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Events, 2)
}

func TestListEventsBadFilter(t *testing.T) {
	g := newGateway(t)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, g.authedRequest(t, "GET", "/api/v1/events?filter=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnreadCountAppliesOverlay(t *testing.T) {
	g := newGateway(t)

	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, g.authedRequest(t, "GET", "/api/v1/events/unread_count", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp buffer.UnreadCountResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.UnreadCount)

	// Resolving one locally drops the effective count while the server
	// still reports 2.
	g.unread.Reconciler().RecordResolved("abc")
	w = httptest.NewRecorder()
	g.router.ServeHTTP(w, g.authedRequest(t, "GET", "/api/v1/events/unread_count", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.UnreadCount)
}

func TestMarkReviewed(t *testing.T) {
	g := newGateway(t)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, g.authedRequest(t, "POST", "/api/v1/events/abc/reviewed", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResolveCandidate(t *testing.T) {
	g := newGateway(t)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, g.authedRequest(t, "GET", "/api/v1/resolve/ce_def", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Event   buffer.Event `json:"event"`
		ClipURL string       `json:"clip_url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "def", resp.Event.Subdir)
	assert.Contains(t, resp.ClipURL, "/files/events/def/clip.mp4")
}

func TestResolveUnknown(t *testing.T) {
	g := newGateway(t)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, g.authedRequest(t, "GET", "/api/v1/resolve/ce_nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListDevices(t *testing.T) {
	g := newGateway(t)

	body, _ := json.Marshal(buffer.RegisterDeviceRequest{Token: "push-tok-1", Platform: "ios"})
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/mobile/register", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	g.router.ServeHTTP(w, g.authedRequest(t, "GET", "/api/v1/devices", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count   int               `json:"count"`
		Devices []registry.Device `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, registry.DeviceID("push-tok-1"), resp.Devices[0].ID)
	assert.Equal(t, "ios", resp.Devices[0].Platform)
}

func TestDeliveriesDisabled(t *testing.T) {
	g := newGateway(t)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, g.authedRequest(t, "GET", "/api/v1/deliveries", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
