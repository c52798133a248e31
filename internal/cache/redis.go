package cache

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

var Client *redis.Client

// InitRedis connects the shared client. An unreachable Redis is not fatal;
// callers treat a nil client as cache-off.
func InitRedis(ctx context.Context, addr string) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unreachable at %s, running without cache: %v", addr, err)
		return
	}
	Client = client
	log.Println("Connected to Redis")
}
