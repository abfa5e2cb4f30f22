package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Storage holds short-lived claims: webhook event ids and the sweeper lock.
type Storage struct {
	client *redis.Client
	prefix string
}

func New(addr, password string) *Storage {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	return &Storage{client: client, prefix: "stays:"}
}

// Ping checks the connection.
func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.redis.Ping"

	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Claim sets key if absent. It returns false when someone else holds it.
func (s *Storage) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	const op = "storage.redis.Claim"

	ok, err := s.client.SetNX(ctx, s.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

func (s *Storage) Release(ctx context.Context, key string) error {
	const op = "storage.redis.Release"

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) Stop() error {
	const op = "storage.redis.Stop"

	if err := s.client.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
