package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PropSync/internal/pkg/config"
)

// limiterDatabase keeps limiter counters apart from anything else sharing the
// server.
const limiterDatabase = 3

// Ping checks that the configured redis/dragonfly server answers.
func Ping(ctx context.Context, cfg config.CacheConfig) error {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       limiterDatabase,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}

// LimiterStorage returns shared storage for rate limiter counters, or nil
// (fiber's in-memory default) when no cache is configured or reachable.
func LimiterStorage(cfg config.CacheConfig) fiber.Storage {
	if !cfg.Enabled() {
		return nil
	}
	// redisstorage.New panics on an unreachable server, so probe first.
	if err := Ping(context.Background(), cfg); err != nil {
		log.Warnf("Could not connect to cache at %s:%d, falling back to in-memory limiter: %v", cfg.Host, cfg.Port, err)
		return nil
	}
	log.Infof("Using cache at %s:%d for rate limiting", cfg.Host, cfg.Port)
	return redisstorage.New(redisstorage.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		Database: limiterDatabase,
		Reset:    false,
	})
}
