package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealflow/auth"
	"dealflow/booking"
	"dealflow/catalog"
	"dealflow/db"
	"dealflow/notify"
	"dealflow/timeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store    booking.Store
		dir      booking.Directory
		audit    booking.TimelineWriter
		accounts *auth.Service
	)

	if connString := os.Getenv("DATABASE_URL"); connString != "" {
		pool, err := db.NewPool(ctx, connString)
		if err != nil {
			log.Fatalf("bootstrap database pool: %v", err)
		}
		defer pool.Close()

		store = booking.NewRepository(pool)
		dir = catalog.NewRepository(pool)
		audit = timeline.NewRepository(pool)

		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			log.Fatalf("JWT_SECRET is required when DATABASE_URL is set")
		}
		accounts = auth.NewService(auth.NewRepository(pool), secret)
	} else {
		log.Printf("DATABASE_URL empty; running on the in-memory store")
		store = booking.NewMemoryStore()
		dir = catalog.NewStaticDirectory(nil)
		audit = timeline.NewMemoryLog()
	}

	engine := booking.NewService(store, dir, nil, nil).WithTimeline(audit)
	hub := notify.NewHub(engine)
	engine.WithPublisher(hub)

	heartbeat := notify.NewHeartbeat(hub, envDuration("HEARTBEAT_INTERVAL", notify.DefaultHeartbeatInterval), 0)
	heartbeat.Start(ctx)

	if accounts != nil {
		log.Printf("dealflow core ready, jwt auth enabled")
	} else {
		log.Printf("dealflow core ready")
	}
	<-ctx.Done()

	heartbeat.Stop()
	engine.Drain()
	hub.Close()
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s %q; using %s", name, raw, fallback)
		return fallback
	}
	return d
}
