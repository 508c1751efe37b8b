// Package integration contains tests that exercise the percolator against
// real external dependencies (PostgreSQL, Redis). Each test skips itself when
// its dependency is unreachable, so the suite runs clean on a bare machine.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/querystream/percolator/internal/query"
	"github.com/querystream/percolator/internal/registry"
	"github.com/querystream/percolator/pkg/config"
	"github.com/querystream/percolator/pkg/postgres"
	"github.com/querystream/percolator/pkg/redis"
)

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "percolator_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "percolator"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	db := skipIfNoPostgres(t)
	store := registry.NewPostgresStore(db)
	ctx := context.Background()

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}

	id := fmt.Sprintf("it-q-%d", time.Now().UnixNano())
	t.Cleanup(func() { store.DeleteQuery(context.Background(), id) })

	q := query.NewMonitorQuery(id, query.Boolean{Clauses: []query.Clause{
		{Occur: query.OccurMust, Expr: query.Term{Field: "text", Text: "breach"}},
		{Occur: query.OccurMustNot, Expr: query.Term{Field: "text", Text: "drill"}},
	}})
	q.Metadata = map[string]string{"owner": "integration"}

	if err := store.SaveQueries(ctx, []*query.MonitorQuery{q}); err != nil {
		t.Fatalf("saving query: %v", err)
	}

	loaded, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("loading queries: %v", err)
	}
	var found *query.MonitorQuery
	for _, lq := range loaded {
		if lq.ID == id {
			found = lq
			break
		}
	}
	if found == nil {
		t.Fatalf("stored query %s not returned by LoadAll", id)
	}
	if found.Metadata["owner"] != "integration" {
		t.Errorf("metadata = %v", found.Metadata)
	}
	boolean, ok := found.Query.(query.Boolean)
	if !ok || len(boolean.Clauses) != 2 {
		t.Errorf("restored expression = %#v", found.Query)
	}
}

func TestPostgresStoreUpsert(t *testing.T) {
	db := skipIfNoPostgres(t)
	store := registry.NewPostgresStore(db)
	ctx := context.Background()

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}

	id := fmt.Sprintf("it-upsert-%d", time.Now().UnixNano())
	t.Cleanup(func() { store.DeleteQuery(context.Background(), id) })

	first := query.NewMonitorQuery(id, query.Term{Field: "text", Text: "original"})
	second := query.NewMonitorQuery(id, query.Term{Field: "text", Text: "replaced"})

	if err := store.SaveQueries(ctx, []*query.MonitorQuery{first}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.SaveQueries(ctx, []*query.MonitorQuery{second}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	loaded, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("loading queries: %v", err)
	}
	for _, lq := range loaded {
		if lq.ID != id {
			continue
		}
		if term, ok := lq.Query.(query.Term); !ok || term.Text != "replaced" {
			t.Errorf("expression after upsert = %#v", lq.Query)
		}
		return
	}
	t.Fatalf("query %s not found after upsert", id)
}

func TestPostgresStoreDeleteIdempotent(t *testing.T) {
	db := skipIfNoPostgres(t)
	store := registry.NewPostgresStore(db)
	ctx := context.Background()

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	if err := store.DeleteQuery(ctx, "never-existed"); err != nil {
		t.Errorf("deleting unknown id: %v", err)
	}
}

func TestRedisDedupeWindow(t *testing.T) {
	client, err := redis.NewClient(config.RedisConfig{
		Addr: envOrDefault("TEST_REDIS_ADDR", "localhost:6379"),
	})
	if err != nil {
		t.Skipf("skipping integration test: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()

	key := fmt.Sprintf("alert:it-q:%d", time.Now().UnixNano())

	claimed, err := client.SetNX(ctx, key, 1, time.Minute)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !claimed {
		t.Fatal("first claim should succeed")
	}

	claimed, err = client.SetNX(ctx, key, 1, time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Error("second claim inside the window should be suppressed")
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
