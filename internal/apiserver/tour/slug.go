package tour

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"touropedia/internal/shared/apierror"
	"touropedia/internal/shared/storage"
)

// slugify 将标题转换为 URL 友好的 slug：
// 小写化，字母数字之外的字符折叠为单个连字符，去掉首尾连字符
func slugify(title string) string {
	var b strings.Builder
	lastHyphen := true // 抑制开头的连字符
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// uniqueSlug 生成不与现有线路冲突的 slug
//
// 统计 slug 为 base 或 base-N 的已有线路数 n，n>0 时追加后缀 -(n+1)。
func uniqueSlug(ctx context.Context, tours storage.TourStore, title string) (string, error) {
	base := slugify(title)
	if base == "" {
		return "", apierror.InvalidArgument("a tour title must contain at least one letter or digit")
	}

	n, err := tours.CountSlugMatches(ctx, base)
	if err != nil {
		return "", apierror.Internal("failed to check slug uniqueness")
	}
	if n > 0 {
		return base + "-" + strconv.FormatInt(n+1, 10), nil
	}
	return base, nil
}
