package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"touropedia/internal/shared/model"
)

// TestMemory_Hit 固定窗口内计数累加，窗口过期后重置
func TestMemory_Hit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	n, err := m.Hit(ctx, "ip:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = m.Hit(ctx, "ip:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// 不同 key 独立计数
	n, err = m.Hit(ctx, "ip:5.6.7.8", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// TestMemory_HitWindowReset 窗口过期后从头计数
func TestMemory_HitWindowReset(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Hit(ctx, "k", time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	n, err := m.Hit(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// TestMemory_TagList 标签缓存命中与过期
func TestMemory_TagList(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	// 未写入：未命中
	tags, err := m.GetTagList(ctx)
	require.NoError(t, err)
	assert.Nil(t, tags)

	want := []model.TagCount{{Tag: "japan", Count: 3}, {Tag: "winter", Count: 1}}
	require.NoError(t, m.SetTagList(ctx, want, time.Minute))

	tags, err = m.GetTagList(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, tags)

	// 过期后未命中
	require.NoError(t, m.SetTagList(ctx, want, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	tags, err = m.GetTagList(ctx)
	require.NoError(t, err)
	assert.Nil(t, tags)
}
