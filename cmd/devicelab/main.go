package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sendrec/devicelab/internal/database"
	"github.com/sendrec/devicelab/internal/diagnostics"
	"github.com/sendrec/devicelab/internal/geoip"
	"github.com/sendrec/devicelab/internal/notify"
	"github.com/sendrec/devicelab/internal/server"
	slackpkg "github.com/sendrec/devicelab/internal/slack"
	"github.com/sendrec/devicelab/internal/storage"
	"github.com/sendrec/devicelab/internal/webhook"
)

func main() {
	port := getEnv("PORT", "8080")
	baseURL := getEnv("BASE_URL", "http://localhost:8080")

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		log.Fatal("SESSION_SECRET is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := diagnostics.Config{
		SessionSecret: sessionSecret,
		ViewerHashKey: os.Getenv("VIEWER_HASH_KEY"),
		SessionTTL:    time.Duration(getEnvInt64("SESSION_TTL_MINUTES", 30)) * time.Minute,
		MaxSessions:   int(getEnvInt64("MAX_SESSIONS", 10000)),
		Debounce:      time.Duration(getEnvInt64("SESSION_DEBOUNCE_MS", 0)) * time.Millisecond,
		DemoVideoURL:  os.Getenv("DEMO_VIDEO_URL"),
	}
	srvCfg := server.Config{
		BaseURL:     baseURL,
		MediaOrigin: originOf(cfg.DemoVideoURL),
		EnableDocs:  getEnvBool("API_DOCS_ENABLED", false),
		StatsAPIKey: os.Getenv("STATS_API_KEY"),
	}

	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		db, err := database.Connect(ctx, databaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()

		if err := db.Migrate(databaseURL); err != nil {
			log.Fatalf("database migration failed: %v", err)
		}
		log.Println("database migrations applied")
		cfg.DB = db.Pool
		srvCfg.Pinger = db
	} else {
		log.Println("DATABASE_URL not set, event recording and stats disabled")
	}

	geo := geoip.New(os.Getenv("GEOIP_DB_PATH"))
	defer func() { _ = geo.Close() }()
	if geo.Enabled() {
		log.Println("geoip enrichment enabled")
	}
	cfg.Geo = geo

	if accessKey := os.Getenv("S3_ACCESS_KEY"); accessKey != "" {
		store, err := storage.New(ctx, storage.Config{
			Endpoint:       getEnv("S3_ENDPOINT", "http://localhost:3900"),
			PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
			Bucket:         getEnv("S3_BUCKET", "devicelab"),
			AccessKey:      accessKey,
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			Region:         getEnv("S3_REGION", "eu-central-1"),
			MaxObjectBytes: getEnvInt64("MAX_REPORT_BYTES", 5*1024*1024),
		})
		if err != nil {
			log.Fatalf("storage initialization failed: %v", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatalf("storage bucket check failed: %v", err)
		}
		log.Println("storage bucket ready, report export enabled")
		cfg.Storage = store
		srvCfg.StorageEndpoint = getEnv("S3_PUBLIC_ENDPOINT", getEnv("S3_ENDPOINT", "http://localhost:3900"))
	}

	var notifiers []diagnostics.Notifier
	if webhookURL := os.Getenv("WEBHOOK_URL"); webhookURL != "" {
		webhookSecret := os.Getenv("WEBHOOK_SECRET")
		if webhookSecret == "" {
			log.Fatal("WEBHOOK_SECRET is required when WEBHOOK_URL is set")
		}
		notifiers = append(notifiers, webhook.New(cfg.DB, webhookURL, webhookSecret))
		log.Println("session webhooks enabled")
	}
	if slackURL := os.Getenv("SLACK_WEBHOOK_URL"); slackURL != "" {
		notifiers = append(notifiers, slackpkg.New(slackURL))
		log.Println("slack notifications enabled")
	}
	if len(notifiers) > 0 {
		cfg.Notifier = notify.NewMulti(notifiers...)
	}

	handler := diagnostics.NewHandler(cfg)
	srvCfg.Diagnostics = handler
	srv := server.New(srvCfg)
	defer srv.Close()

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	handler.StartSessionSweeper(sweepCtx, time.Minute)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("devicelab listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-shutdownCh
	log.Println("shutting down...")

	// Closing sessions ends open event streams so Shutdown can drain.
	sweepCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
	log.Println("shutdown complete")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// originOf returns scheme://host of raw, or "" for relative or invalid URLs.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
