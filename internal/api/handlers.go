package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jballard86/frigate-push-gateway/internal/alerts"
	"github.com/jballard86/frigate-push-gateway/internal/audit"
	"github.com/jballard86/frigate-push-gateway/internal/buffer"
	"github.com/jballard86/frigate-push-gateway/internal/ingest"
	"github.com/jballard86/frigate-push-gateway/internal/metrics"
	"github.com/jballard86/frigate-push-gateway/internal/middleware"
	"github.com/jballard86/frigate-push-gateway/internal/push"
	"github.com/jballard86/frigate-push-gateway/internal/registry"
	"github.com/jballard86/frigate-push-gateway/internal/tokens"
	"github.com/jballard86/frigate-push-gateway/internal/unread"
)

const (
	webhookSecretHeader = "X-Push-Secret"
	deviceTokenTTL      = 60 * 24 * time.Hour
	maxWebhookBody      = 64 << 10
)

// Handler holds the gateway's HTTP surface. Registry and Deliveries are
// optional; their endpoints return 503 when absent.
type Handler struct {
	Buffer     *buffer.Client
	Dispatcher *push.Dispatcher
	Unread     *unread.Service
	Hub        *alerts.Hub
	Tokens     *tokens.Manager
	Registry   *registry.Registry
	Deliveries *audit.Service

	WebhookSecret string
}

// Register mounts the gateway routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/push", h.PushWebhook)
		r.Post("/mobile/register", h.RegisterDevice)
		r.Get("/ws", h.Hub.ServeWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewJWTAuth(h.Tokens).Middleware)
			r.Get("/events", h.ListEvents)
			r.Get("/events/unread_count", h.UnreadCount)
			r.Post("/events/{ceID}/reviewed", h.MarkReviewed)
			r.Post("/events/{ceID}/keep", h.Keep)
			r.Post("/events/{ceID}/delete", h.Delete)
			r.Get("/resolve/{ceID}", h.Resolve)
			r.Get("/devices", h.ListDevices)
			r.Get("/deliveries", h.RecentDeliveries)
		})
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":            "ok",
		"buffer_configured": h.Buffer.Configured(),
		"ws_clients":        h.Hub.ClientCount(),
	}
	if h.Registry != nil {
		if n, err := h.Registry.Count(r.Context()); err == nil {
			status["registered_devices"] = n
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// PushWebhook accepts a lifecycle message over HTTP, for deployments where
// the buffer posts directly instead of publishing to the message bus. The
// shared secret gates it; payload shape matches the bus messages.
func (h *Handler) PushWebhook(w http.ResponseWriter, r *http.Request) {
	if h.WebhookSecret == "" {
		http.Error(w, "webhook disabled", http.StatusServiceUnavailable)
		return
	}
	got := r.Header.Get(webhookSecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.WebhookSecret)) != 1 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}
	data, err := ingest.DecodePayload(body)
	if err != nil {
		log.Printf("[WARN] API: bad push payload: %v", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	h.Dispatcher.HandleRaw(data)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// RegisterDevice forwards the push token to the buffer, records the device
// in the registry and issues the device JWT used for the alert feed and the
// event endpoints.
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req buffer.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		http.Error(w, "token required", http.StatusBadRequest)
		return
	}
	if req.Platform == "" {
		req.Platform = "android"
	}

	if h.Buffer.Configured() {
		if err := h.Buffer.RegisterDevice(r.Context(), req.Token, req.Platform); err != nil {
			// Registration still succeeds locally; the buffer picks the
			// token up on the next register call.
			log.Printf("[WARN] API: buffer register failed: %v", err)
		}
	}

	deviceID := registry.DeviceID(req.Token)
	if h.Registry != nil {
		id, err := h.Registry.Register(r.Context(), req.Token, req.Platform)
		if err != nil {
			log.Printf("[ERROR] API: registry write failed: %v", err)
			http.Error(w, "registration failed", http.StatusInternalServerError)
			return
		}
		deviceID = id
	}

	jwt, err := h.Tokens.GenerateDeviceToken(deviceID, req.Platform, deviceTokenTTL)
	if err != nil {
		http.Error(w, "token issue failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "registered",
		"device_id": deviceID,
		"token":     jwt,
	})
}

// touchDevice refreshes the caller's registration on authenticated reads so
// an active device never ages out of the registry.
func (h *Handler) touchDevice(r *http.Request) {
	if h.Registry == nil {
		return
	}
	dc, ok := middleware.GetDeviceContext(r.Context())
	if !ok {
		return
	}
	if err := h.Registry.Touch(r.Context(), dc.DeviceID); err != nil {
		log.Printf("[DEBUG] API: device touch failed for %s: %v", dc.DeviceID, err)
	}
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	h.touchDevice(r)
	mode := unread.FilterMode(r.URL.Query().Get("filter"))
	switch mode {
	case unread.FilterUnreviewed, unread.FilterReviewed, unread.FilterAll:
	case "":
		mode = unread.FilterUnreviewed
	default:
		http.Error(w, "invalid filter", http.StatusBadRequest)
		return
	}
	resp, err := h.Unread.ListEvents(r.Context(), mode)
	if err != nil {
		http.Error(w, "buffer unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// UnreadCount returns the effective count: the last fetched server count
// minus locally resolved events, floored at zero.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	h.touchDevice(r)
	if err := h.Unread.RefreshCount(r.Context()); err != nil {
		log.Printf("[WARN] API: unread refresh failed: %v", err)
	}
	writeJSON(w, http.StatusOK, buffer.UnreadCountResponse{
		UnreadCount: h.Unread.Reconciler().EffectiveCount(),
	})
}

func (h *Handler) MarkReviewed(w http.ResponseWriter, r *http.Request) {
	h.eventAction(w, r, h.Unread.MarkReviewed)
}

func (h *Handler) Keep(w http.ResponseWriter, r *http.Request) {
	h.eventAction(w, r, h.Unread.Keep)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	h.eventAction(w, r, h.Unread.Delete)
}

func (h *Handler) eventAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, ceID string) error) {
	ceID := chi.URLParam(r, "ceID")
	if ceID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}
	if err := fn(r.Context(), ceID); err != nil {
		log.Printf("[ERROR] API: action failed for %s: %v", ceID, err)
		http.Error(w, "action failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Resolve maps a lifecycle candidate id to the buffer event it names,
// returning the event plus absolute media URLs. Used by clients to deep-link
// from an alert into the viewer.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	ceID := chi.URLParam(r, "ceID")
	resp, err := h.Unread.ListEvents(r.Context(), unread.FilterAll)
	if err != nil {
		http.Error(w, "buffer unavailable", http.StatusBadGateway)
		return
	}
	ev, ok := buffer.FindByCandidate(resp.Events, ceID)
	if !ok {
		http.Error(w, "event not found", http.StatusNotFound)
		return
	}
	out := map[string]any{
		"event": ev,
	}
	if ev.HostedClip != "" {
		out["clip_url"] = h.Buffer.MediaURL(buffer.NormalizeEventMediaPath(ev.HostedClip))
	}
	if ev.HostedSnapshot != "" {
		out["snapshot_url"] = h.Buffer.MediaURL(buffer.NormalizeEventMediaPath(ev.HostedSnapshot))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	if h.Registry == nil {
		http.Error(w, "registry disabled", http.StatusServiceUnavailable)
		return
	}
	devices, err := h.Registry.List(r.Context())
	if err != nil {
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(devices),
		"devices": devices,
	})
}

func (h *Handler) RecentDeliveries(w http.ResponseWriter, r *http.Request) {
	if h.Deliveries == nil {
		http.Error(w, "audit log disabled", http.StatusServiceUnavailable)
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	rows, err := h.Deliveries.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": rows})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] API: encode response: %v", err)
	}
}
