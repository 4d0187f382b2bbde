// Package cache 缓存层抽象接口
//
// 两个用途：限流计数器（固定窗口）与标签聚合结果缓存。
// 具体实现在子包 redis/ 中；缓存不可用时调用方应降级而非报错。
package cache

import (
	"context"
	"sync"
	"time"

	"touropedia/internal/shared/model"
)

// RateLimitCache 固定窗口限流计数
type RateLimitCache interface {
	// Hit 对 key 计数加一并返回窗口内累计值，窗口首个请求时设置过期
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// TagCache 标签聚合结果缓存
type TagCache interface {
	SetTagList(ctx context.Context, tags []model.TagCount, ttl time.Duration) error
	// GetTagList 未命中时返回 (nil, nil)
	GetTagList(ctx context.Context) ([]model.TagCount, error)
}

// Cache 组合缓存接口
type Cache interface {
	RateLimitCache
	TagCache
	Close() error
}

// ============================================================================
// 内存实现（测试用）
// ============================================================================

type memoryEntry struct {
	count   int64
	expires time.Time
}

// Memory 进程内缓存，仅用于测试
type Memory struct {
	mu      sync.Mutex
	hits    map[string]*memoryEntry
	tags    []model.TagCount
	tagsExp time.Time
}

// NewMemory 创建内存缓存
func NewMemory() *Memory {
	return &Memory{hits: make(map[string]*memoryEntry)}
}

func (m *Memory) Hit(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	entry, ok := m.hits[key]
	if !ok || now.After(entry.expires) {
		entry = &memoryEntry{expires: now.Add(window)}
		m.hits[key] = entry
	}
	entry.count++
	return entry.count, nil
}

func (m *Memory) SetTagList(_ context.Context, tags []model.TagCount, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags = tags
	m.tagsExp = time.Now().Add(ttl)
	return nil
}

func (m *Memory) GetTagList(_ context.Context) ([]model.TagCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tags == nil || time.Now().After(m.tagsExp) {
		return nil, nil
	}
	return m.tags, nil
}

func (m *Memory) Close() error { return nil }

var _ Cache = (*Memory)(nil)
