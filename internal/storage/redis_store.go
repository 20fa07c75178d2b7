package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists records as plain string keys with native expiry.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = "radar"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) recordKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, namespace, key)
}

func (s *RedisStore) namespacePattern(namespace string) string {
	return fmt.Sprintf("%s:%s:*", s.prefix, namespace)
}

func (s *RedisStore) Get(ctx context.Context, namespace, key string) (Record, bool, error) {
	b, err := s.rdb.Get(ctx, s.recordKey(namespace, key)).Bytes()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return Record{Key: key, Data: b}, true, nil
}

// Load scans the namespace. Keys that expire between SCAN and GET are skipped.
func (s *RedisStore) Load(ctx context.Context, namespace string) ([]Record, error) {
	trim := len(s.recordKey(namespace, ""))
	var out []Record
	iter := s.rdb.Scan(ctx, 0, s.namespacePattern(namespace), 200).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		b, err := s.rdb.Get(ctx, k).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Record{Key: k[trim:], Data: b})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) Put(ctx context.Context, namespace string, rec Record) error {
	var ttl time.Duration
	if !rec.ExpiresAt.IsZero() {
		ttl = time.Until(rec.ExpiresAt)
		if ttl <= 0 {
			return s.Delete(ctx, namespace, rec.Key)
		}
	}
	return s.rdb.Set(ctx, s.recordKey(namespace, rec.Key), rec.Data, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, namespace, key string) error {
	return s.rdb.Del(ctx, s.recordKey(namespace, key)).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
