package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"genstrat/internal/store"
)

// Config selects the redis endpoint.
type Config struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces every key so several deployments can share one
	// instance.
	KeyPrefix string
}

// Store implements store.Store on go-redis: scalars as plain keys, records as
// hashes, membership sets as redis sets.
type Store struct {
	client *goredis.Client
	prefix string
}

var _ store.Store = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis store: addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Store{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix)}, nil
}

// Ping verifies connectivity at startup.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redis store not initialized")
	}
	return s.client.Ping(ctx).Err()
}

func (s *Store) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

func (s *Store) GetRecord(ctx context.Context, key string) (map[string]string, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	return fields, true, nil
}

func (s *Store) SetRecord(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	// Replace, not merge: stale fields from a previous shape must not survive.
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(key))
	pipe.HSet(ctx, s.key(key), fields)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) DeleteRecord(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *Store) AddToSet(ctx context.Context, set, member string) error {
	return s.client.SAdd(ctx, s.key(set), member).Err()
}

func (s *Store) RemoveFromSet(ctx context.Context, set, member string) error {
	return s.client.SRem(ctx, s.key(set), member).Err()
}

func (s *Store) SetMembers(ctx context.Context, set string) ([]string, error) {
	return s.client.SMembers(ctx, s.key(set)).Result()
}

func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
