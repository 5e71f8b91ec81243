// Package redislock serializes tests that share one Redis database across
// packages run in parallel by go test.
package redislock

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockAddr = "127.0.0.1:46379"

// Acquire blocks until no other test process holds the lock.
func Acquire() func() {
	for {
		ln, err := net.Listen("tcp", lockAddr)
		if err == nil {
			return func() { ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Client connects to REDIS_URL and holds the lock until t ends. The test
// is skipped when REDIS_URL is unset or unreachable.
func Client(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse REDIS_URL: %v", err)
	}
	release := Acquire()
	client := redis.NewClient(opts)
	t.Cleanup(func() {
		client.Close()
		release()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	return client
}
