package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// pingTimeout bounds the connectivity probe so a dead Redis fails the
// caller quickly instead of hanging startup.
const pingTimeout = 5 * time.Second

// New connects to Redis at addr and verifies the connection with a ping.
// The worker treats a failure here as fatal; the API server tolerates a
// degraded cache and constructs its client inline instead.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", addr, err)
	}
	return client, nil
}
