package serverutils

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware allows max requests per window for each caller. The
// caller is the value of the auth header, or the client IP without one.
// storage may be nil for per-process counters.
func RateLimitMiddleware(max int, window time.Duration, keyHeader string, storage fiber.Storage) fiber.Handler {
	cfg := limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(ctx *fiber.Ctx) string {
			if key := ctx.Get(keyHeader); key != "" {
				return "key:" + key
			}
			return "ip:" + ctx.IP()
		},
		LimitReached: func(ctx *fiber.Ctx) error {
			return ctx.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse(fiber.StatusTooManyRequests, "Rate limit exceeded. Try again later."))
		},
	}
	if storage != nil {
		cfg.Storage = storage
	}
	return limiter.New(cfg)
}

// RedisStorage adapts a go-redis client to fiber.Storage so limiter counters
// are shared between instances.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

var _ fiber.Storage = &RedisStorage{}

func NewRedisStorage(client *redis.Client, prefix string) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix}
}

func (s *RedisStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	val, err := s.client.Get(context.Background(), s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (s *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	return s.client.Set(context.Background(), s.prefix+key, val, exp).Err()
}

func (s *RedisStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	return s.client.Del(context.Background(), s.prefix+key).Err()
}

// Reset drops only the keys under this storage's prefix.
func (s *RedisStorage) Reset() error {
	ctx := context.Background()
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
