package tour

import (
	"context"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"touropedia/internal/shared/storage"
)

// fakeTours 只实现 slug 消歧用到的方法
type fakeTours struct {
	storage.TourStore
	slugCount int64
}

func (f *fakeTours) CountSlugMatches(_ context.Context, _ string) (int64, error) {
	return f.slugCount, nil
}

// TestSlugify 标题到 slug 的转换规则
func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Ten days in Hokkaido", "ten-days-in-hokkaido"},
		{"  Trailing  spaces  ", "trailing-spaces"},
		{"Symbols & punctuation!!!", "symbols-punctuation"},
		{"MiXeD CaSe", "mixed-case"},
		{"already-a-slug", "already-a-slug"},
		{"100% pure: NZ", "100-pure-nz"},
		{"北海道の旅", "北海道の旅"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, slugify(tt.title))
		})
	}
}

// TestUniqueSlug 冲突时追加数字后缀
func TestUniqueSlug(t *testing.T) {
	ctx := context.Background()

	slug, err := uniqueSlug(ctx, &fakeTours{slugCount: 0}, "Ten days in Hokkaido")
	require.NoError(t, err)
	assert.Equal(t, "ten-days-in-hokkaido", slug)

	// 已有 base 与 base-2 两条，新 slug 为 base-3
	slug, err = uniqueSlug(ctx, &fakeTours{slugCount: 2}, "Ten days in Hokkaido")
	require.NoError(t, err)
	assert.Equal(t, "ten-days-in-hokkaido-3", slug)
}

// TestUniqueSlug_EmptyBase 无有效字符的标题报错
func TestUniqueSlug_EmptyBase(t *testing.T) {
	_, err := uniqueSlug(context.Background(), &fakeTours{}, "!!!")
	assert.True(t, errdefs.IsInvalidArgument(err))
}
