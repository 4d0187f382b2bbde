// Package redis 基于 Redis 的缓存实现
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"touropedia/internal/shared/cache"
	"touropedia/internal/shared/model"
)

const tagListKey = "touropedia:tags"

// Store Redis 缓存
type Store struct {
	client *redis.Client
}

// NewStore 连接 Redis，url 形如 redis://:password@host:6379/0
func NewStore(url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Store{client: client}, nil
}

// Hit INCR + 首次命中时 EXPIRE，固定窗口计数
func (s *Store) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *Store) SetTagList(ctx context.Context, tags []model.TagCount, ttl time.Duration) error {
	data, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, tagListKey, data, ttl).Err()
}

func (s *Store) GetTagList(ctx context.Context) ([]model.TagCount, error) {
	data, err := s.client.Get(ctx, tagListKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tags []model.TagCount
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// Close 关闭连接
func (s *Store) Close() error {
	return s.client.Close()
}

var _ cache.Cache = (*Store)(nil)
