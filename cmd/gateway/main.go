package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/jballard86/frigate-push-gateway/internal/alerts"
	"github.com/jballard86/frigate-push-gateway/internal/api"
	"github.com/jballard86/frigate-push-gateway/internal/audit"
	"github.com/jballard86/frigate-push-gateway/internal/buffer"
	"github.com/jballard86/frigate-push-gateway/internal/config"
	"github.com/jballard86/frigate-push-gateway/internal/ingest"
	"github.com/jballard86/frigate-push-gateway/internal/middleware"
	"github.com/jballard86/frigate-push-gateway/internal/push"
	"github.com/jballard86/frigate-push-gateway/internal/registry"
	"github.com/jballard86/frigate-push-gateway/internal/tokens"
	"github.com/jballard86/frigate-push-gateway/internal/unread"
)

func main() {
	cfgPath := os.Getenv("GATEWAY_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/gateway.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Config load error: %v", err)
	}

	// Buffer client. An empty base URL is allowed: the gateway runs, drops
	// push messages and reports unconfigured on /healthz.
	bufClient := buffer.NewClient(cfg.Buffer.BaseURL, cfg.BufferTimeout())
	if !bufClient.Configured() {
		log.Printf("[WARN] Main: BUFFER_BASE_URL not set, running unconfigured")
	}

	// Redis device registry.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	var reg *registry.Registry
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Printf("[WARN] Main: redis unavailable (%v), device registry disabled", err)
	} else {
		reg = registry.NewRegistry(rdb)
	}

	pruneStop := make(chan struct{})
	defer close(pruneStop)
	if reg != nil {
		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-pruneStop:
					return
				case <-ticker.C:
					ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
					if n, err := reg.Prune(ctx); err != nil {
						log.Printf("[WARN] Main: device prune failed: %v", err)
					} else if n > 0 {
						log.Printf("[DEBUG] Main: pruned %d stale device registrations", n)
					}
					cancel()
				}
			}
		}()
	}

	// Optional postgres delivery log.
	var deliveries *audit.Service
	var deliveryLog push.DeliveryLog
	if cfg.Audit.DSN != "" {
		db, err := sql.Open("postgres", cfg.Audit.DSN)
		if err != nil {
			log.Fatalf("DB open error: %v", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatalf("DB ping error: %v", err)
		}
		deliveries = audit.NewService(db)
		deliveryLog = deliveries
		defer db.Close()
	}

	// Core components.
	tokenMgr := tokens.NewManager(cfg.Auth.SigningKey)
	hub := alerts.NewHub(tokenMgr)
	cache := push.NewImageCache(cfg.Push.CacheMaxBytes)
	resolver := push.NewResolver(cache, bufClient)
	dispatcher := push.NewDispatcher(hub, resolver, bufClient, deliveryLog)

	rec := unread.NewReconciler()
	badge := unread.NewBadgeEmitter(hub, rec)
	unreadSvc := unread.NewService(bufClient, rec, badge, hub, cache, cfg.UnreadPollInterval())
	unreadSvc.Start()
	defer unreadSvc.Stop()

	// NATS ingest, optional: the webhook covers deployments without a bus.
	natsURL := os.Getenv("NATS_URL")
	if natsURL != "" {
		nc, err := nats.Connect(natsURL,
			nats.ReconnectWait(2*time.Second),
			nats.MaxReconnects(-1))
		if err != nil {
			log.Fatalf("NATS connect error: %v", err)
		}
		defer nc.Close()
		sub := ingest.NewSubscriber(nc, cfg.Push.NatsSubject, dispatcher)
		if err := sub.Start(); err != nil {
			log.Fatalf("NATS subscribe error: %v", err)
		}
		defer sub.Stop()
		log.Printf("[DEBUG] Main: consuming lifecycle messages on %s", cfg.Push.NatsSubject)
	}

	handler := &api.Handler{
		Buffer:        bufClient,
		Dispatcher:    dispatcher,
		Unread:        unreadSvc,
		Hub:           hub,
		Tokens:        tokenMgr,
		Registry:      reg,
		Deliveries:    deliveries,
		WebhookSecret: cfg.Push.WebhookSecret,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger)
	handler.Register(r)

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("Gateway listening on %s", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] Main: shutdown: %v", err)
	}
	dispatcher.Close()
}
