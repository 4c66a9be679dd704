package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"crisisdesk.org/internal/auth"
	"crisisdesk.org/internal/httpapi"
	"crisisdesk.org/internal/obs"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		store auth.Store
		probe httpapi.ReadyProbe
		pg    *auth.PGStore
	)
	if dsn := os.Getenv("CRISISDESK_PG_DSN"); dsn != "" {
		var err error
		pg, err = auth.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("ensure schema: %v", err)
		}
		store = pg
		probe = httpapi.ReadyProbe{Pinger: pg}
	} else {
		// In-memory store for local development and demos.
		log.Printf("CRISISDESK_PG_DSN not set, using in-memory store")
		store = auth.NewMemoryStore()
	}

	opts := []auth.ServiceOption{}
	if ttl := envDuration("CRISISDESK_SESSION_TTL", 0); ttl > 0 {
		opts = append(opts, auth.WithSessionTTL(ttl))
	}
	if cost := envInt("CRISISDESK_BCRYPT_COST", 0); cost > 0 {
		opts = append(opts, auth.WithBcryptCost(cost))
	}
	svc, err := auth.NewService(store, opts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	// Seeding is idempotent; existing accounts are left untouched.
	if os.Getenv("CRISISDESK_SEED_DEMO") != "0" {
		if err := svc.SeedDemoUsers(ctx); err != nil {
			log.Fatalf("seed demo users: %v", err)
		}
	}

	go purgeLoop(ctx, svc, envDuration("CRISISDESK_PURGE_INTERVAL", time.Hour))

	api := httpapi.New(svc, probe, version)
	api.SecureCookies = os.Getenv("CRISISDESK_SECURE_COOKIES") == "1"

	addr := os.Getenv("CRISISDESK_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting crisisdesk-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	if pg != nil {
		_ = pg.Close()
	}
	log.Println("Stopped")
}

// purgeLoop deletes expired sessions on a fixed interval. Validation already
// rejects expired tokens lazily; the loop only bounds table growth.
func purgeLoop(ctx context.Context, svc *auth.Service, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpiredSessions(ctx)
			if err != nil {
				log.Printf("purge sessions: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("purged %d expired sessions", n)
			}
		}
	}
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return d
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return n
}
