package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lborres/bantay/core"
)

const keyPrefix = "bantay:"

// Storage keeps the token in Redis under "bantay:<profile>:bantay.token"
type Storage struct {
	client *goredis.Client
	key    string
	ttl    time.Duration // 0 means no expiry
}

var _ core.TokenStorage = (*Storage)(nil)

func New(client *goredis.Client, profile string, ttl time.Duration) *Storage {
	if profile == "" {
		profile = "default"
	}
	return &Storage{
		client: client,
		key:    fmt.Sprintf("%s%s:%s", keyPrefix, profile, core.TokenStorageKey),
		ttl:    ttl,
	}
}

// Connect parses a redis:// URL and verifies the server answers
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *Storage) LoadToken(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", core.ErrTokenNotFound
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *Storage) SaveToken(ctx context.Context, token string) error {
	return s.client.Set(ctx, s.key, token, s.ttl).Err()
}

func (s *Storage) ClearToken(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
