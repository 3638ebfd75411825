//go:build integration

package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	domain "github.com/lumenmarket/api/internal/domain"
)

const redisImage = "redis:7-alpine"

func TestCartStoreIntegration(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startRedis(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	client := goredis.NewClient(&goredis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewCartStore(client, 2*time.Second)
	if err != nil {
		t.Fatalf("new cart store: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	owner := domain.ActorRef("session-abc")

	_, err = store.Fetch(ctx, owner)
	if err == nil {
		t.Fatalf("expected not found for missing cart")
	}
	var repoErr *Error
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found repository error, got %v", err)
	}

	cart := domain.Cart{
		Owner: owner,
		Lines: []domain.CartLine{
			{ProductID: "prod-001", Name: "Walnut desk organiser", Quantity: 2, UnitPrice: 4500, AddedAt: time.Now().UTC()},
		},
		TotalItems:  2,
		TotalAmount: 9000,
	}
	saved, err := store.Save(ctx, cart)
	if err != nil {
		t.Fatalf("save cart: %v", err)
	}
	if saved.ExpiresAt.IsZero() || !saved.ExpiresAt.After(saved.LastUpdated) {
		t.Fatalf("expected expiry after last update, got %v / %v", saved.ExpiresAt, saved.LastUpdated)
	}

	loaded, err := store.Fetch(ctx, owner)
	if err != nil {
		t.Fatalf("fetch cart: %v", err)
	}
	if len(loaded.Lines) != 1 || loaded.Lines[0].ProductID != "prod-001" {
		t.Fatalf("unexpected cart lines: %+v", loaded.Lines)
	}
	if loaded.TotalAmount != 9000 {
		t.Fatalf("expected total 9000, got %d", loaded.TotalAmount)
	}

	// Saving again must restart the expiry window.
	resaved, err := store.Save(ctx, loaded)
	if err != nil {
		t.Fatalf("resave cart: %v", err)
	}
	if !resaved.ExpiresAt.After(saved.ExpiresAt.Add(-time.Second)) {
		t.Fatalf("expected refreshed expiry, got %v (was %v)", resaved.ExpiresAt, saved.ExpiresAt)
	}

	if err := store.Delete(ctx, owner); err != nil {
		t.Fatalf("delete cart: %v", err)
	}
	if _, err := store.Fetch(ctx, owner); err == nil {
		t.Fatalf("expected not found after delete")
	}
	if err := store.Delete(ctx, owner); err != nil {
		t.Fatalf("deleting an absent cart should not error: %v", err)
	}

	// The TTL must actually expire idle carts.
	if _, err := store.Save(ctx, cart); err != nil {
		t.Fatalf("save cart for expiry check: %v", err)
	}
	time.Sleep(2500 * time.Millisecond)
	if _, err := store.Fetch(ctx, owner); err == nil {
		t.Fatalf("expected cart to expire after ttl")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to allocate port: %v", err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

func startRedis(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:6379", port),
		redisImage,
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start redis: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	cmd := exec.Command("docker", "info")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("docker daemon unavailable: %v - %s", err, string(out))
	}
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	cmd := exec.Command("docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, time.Second)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("endpoint %s not reachable within %s", endpoint, timeout)
}
