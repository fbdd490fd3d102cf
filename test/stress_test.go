package test

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"dealflow/booking"
	"dealflow/catalog"
	"dealflow/notify"
	"dealflow/test/actors"
	"dealflow/test/infra"
	"dealflow/test/oracles"
	"dealflow/timeline"
)

var (
	flDuration    = flag.Duration("duration", 30*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent actors")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func TestLifecycleConcurrency(t *testing.T) {
	flag.Parse()
	rand.Seed(*flSeed)

	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	var (
		pgC        *infra.PGContainer
		dsn        string
		err        error
		usedShared bool
	)
	switch {
	case *flDSN != "":
		dsn = *flDSN
		usedShared = true
		pgC = &infra.PGContainer{}
	case os.Getenv("DEALFLOW_TEST_PG_DSN") != "":
		dsn = os.Getenv("DEALFLOW_TEST_PG_DSN")
		usedShared = true
		pgC = &infra.PGContainer{}
	default:
		if dockerAvailable(ctx) {
			pgC, dsn, err = infra.StartPostgres16(ctx, "")
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Skipf("no Docker and no local PostgreSQL: %v", err)
			}
			pgC = &infra.PGContainer{}
		}
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	seed := mustSeed(t, ctx, pool)

	engine := booking.NewService(
		booking.NewRepository(pool),
		catalog.NewRepository(pool),
		nil,
		nil,
	).WithTimeline(timeline.NewRepository(pool))
	hub := notify.NewHub(engine)
	engine.WithPublisher(hub)

	heartbeat := notify.NewHeartbeat(hub, 500*time.Millisecond, 5*time.Second)
	heartbeat.Start(ctx)
	defer heartbeat.Stop()

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	for i := 0; i < *flConcurrency; i++ {
		g.Go(func() error { return actors.Creator(ctx2, engine, seed, stop) })
		g.Go(func() error { return actors.Driver(ctx2, engine, seed, stop) })
	}
	g.Go(func() error { return actors.Subscriber(ctx2, engine, hub, seed, stop) })
	g.Go(func() error { return actors.Subscriber(ctx2, engine, hub, seed, stop) })

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failedOracles []string
	for time.Now().Before(deadline) && len(failedOracles) == 0 {
		select {
		case <-ctx.Done():
			t.Fatalf("context expired mid-run: %v", ctx.Err())
		case <-ticker.C:
			failedOracles, err = oracles.Check(ctx, pool)
			if err != nil {
				t.Fatalf("oracle check: %v", err)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil {
		t.Fatalf("actor failed: %v", err)
	}
	engine.Drain()
	hub.Close()

	if len(failedOracles) > 0 {
		t.Fatalf("oracles violated mid-run: %v (seed=%d)", failedOracles, *flSeed)
	}

	failedOracles, err = oracles.Check(ctx, pool)
	if err != nil {
		t.Fatalf("final oracle check: %v", err)
	}
	if len(failedOracles) > 0 {
		t.Fatalf("oracles violated after drain: %v (seed=%d)", failedOracles, *flSeed)
	}
	if n := hub.ActiveChannels(); n != 0 {
		t.Fatalf("expected empty registry after shutdown, got %d channels", n)
	}
}

func mustSeed(t *testing.T, ctx context.Context, pool *pgxpool.Pool) actors.Seed {
	t.Helper()

	var seed actors.Seed
	suffix := time.Now().UnixNano()

	for i := 0; i < 4; i++ {
		var clientID string
		if err := pool.QueryRow(ctx,
			`INSERT INTO users (email, display_name, role) VALUES ($1, $2, 'client') RETURNING id::text`,
			fmt.Sprintf("client%d+%d@example.com", i, suffix), fmt.Sprintf("Client %d", i),
		).Scan(&clientID); err != nil {
			t.Fatalf("seed client: %v", err)
		}
		seed.Clients = append(seed.Clients, clientID)
	}

	for i := 0; i < 3; i++ {
		var providerID string
		if err := pool.QueryRow(ctx,
			`INSERT INTO users (email, display_name, role) VALUES ($1, $2, 'provider') RETURNING id::text`,
			fmt.Sprintf("provider%d+%d@example.com", i, suffix), fmt.Sprintf("Provider %d", i),
		).Scan(&providerID); err != nil {
			t.Fatalf("seed provider: %v", err)
		}

		var serviceID string
		if err := pool.QueryRow(ctx,
			`INSERT INTO services (provider_id, title) VALUES ($1, $2) RETURNING id::text`,
			providerID, fmt.Sprintf("Service %d", i),
		).Scan(&serviceID); err != nil {
			t.Fatalf("seed service: %v", err)
		}
		seed.Services = append(seed.Services, actors.SeededService{ID: serviceID, ProviderID: providerID})
	}

	return seed
}

func dockerAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "docker", "info")
	return cmd.Run() == nil
}
