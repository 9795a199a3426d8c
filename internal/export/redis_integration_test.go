//go:build integration_redis

package export_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"jobmate/aggregator-service/internal/db"
	"jobmate/aggregator-service/internal/export"
	"jobmate/aggregator-service/internal/model"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := c.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	rdb, err := db.NewRedisClient(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

// ── Redis ───────────────────────────────────────────────────────────────────

func TestRedis_Integration(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()
	sub := rdb.Subscribe(ctx, export.EventJobsSynced)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	r := export.NewRedis(rdb)
	if err := r.Sync(ctx, "jobs", []model.JobRecord{job("a1", "Network Engineer", 61)}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var ev map[string]any
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil || ev["type"] != export.EventJobsSynced || ev["count"] != float64(1) {
			t.Errorf("event = %s (%v)", msg.Payload, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no EVENT_JOBS_SYNCED received")
	}

	// a user marks the job; the next sync must keep that
	raw, err := rdb.HGet(ctx, "jobs", "a1").Result()
	if err != nil {
		t.Fatal(err)
	}
	var stored model.JobRecord
	json.Unmarshal([]byte(raw), &stored)
	stored.UserStatus = "Applied"
	b, _ := json.Marshal(stored)
	rdb.HSet(ctx, "jobs", "a1", b)

	if err := r.Sync(ctx, "jobs", []model.JobRecord{job("a1", "Senior Network Engineer", 80), job("b2", "SRE", 40)}); err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if n := rdb.HLen(ctx, "jobs").Val(); n != 2 {
		t.Errorf("HLen = %d, want 2", n)
	}
	raw, _ = rdb.HGet(ctx, "jobs", "a1").Result()
	var got model.JobRecord
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatal(err)
	}
	if got.Title != "Senior Network Engineer" || got.UserStatus != "Applied" {
		t.Errorf("title=%q status=%q", got.Title, got.UserStatus)
	}
}
