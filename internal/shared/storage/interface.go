// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在子包中：mongostore/
//   - 初始化时通过依赖注入传入实现
package storage

import (
	"context"
	"time"

	"touropedia/internal/shared/model"
	"touropedia/internal/shared/query"
)

// Repository 单实体集合的通用仓库接口
//
// Find 执行查询计划：base 为端点预置过滤（如“本线路的评论”），
// 与 spec 的过滤条件合并后按排序/投影/分页执行。
type Repository[T any] interface {
	Find(ctx context.Context, base query.Filter, spec *query.Spec) ([]*T, error)
	FindOne(ctx context.Context, base query.Filter) (*T, error)
	Get(ctx context.Context, id string) (*T, error)
	Count(ctx context.Context, base query.Filter) (int64, error)
	Insert(ctx context.Context, doc *T) error
	// Update 按 _id 部分更新指定字段，返回更新后的文档
	Update(ctx context.Context, id string, fields map[string]interface{}) (*T, error)
	Delete(ctx context.Context, id string) error
}

// UserStore 用户存储接口
//
// 除 ByResetToken 外的查询均排除软删除用户（active=false）。
type UserStore interface {
	Repository[model.User]
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
	// ListLatestUsers 按 _id 降序取最近注册的 n 个用户
	ListLatestUsers(ctx context.Context, n int) ([]*model.User, error)
	// SoftDeleteUser 置 active=false，不物理删除
	SoftDeleteUser(ctx context.Context, id string) error
	UserStatsByMonth(ctx context.Context, since time.Time) ([]model.MonthCount, error)
}

// TourStore 线路存储接口
type TourStore interface {
	Repository[model.Tour]
	GetTourBySlug(ctx context.Context, slug string) (*model.Tour, error)
	// CountSlugMatches 统计 slug 形如 base 或 base-N 的已有线路数，用于冲突消歧
	CountSlugMatches(ctx context.Context, base string) (int64, error)
	// SearchTours 全文检索 title/description，按相关度降序，最多 limit 条
	SearchTours(ctx context.Context, q string, limit int) ([]*model.Tour, error)
	// SearchToursByTitle 标题大小写不敏感的正则匹配
	SearchToursByTitle(ctx context.Context, title string) ([]*model.Tour, error)
	// ToggleLike 原子切换点赞：已在集合则移除，否则加入；返回更新后的线路
	ToggleLike(ctx context.Context, tourID, userID string, liked bool) (*model.Tour, error)
	// TagsList $unwind/$group 聚合标签计数，按计数降序
	TagsList(ctx context.Context) ([]model.TagCount, error)
	// ListToursByTags 按标签集合取相关线路（任一标签命中），排除 excludeID
	ListToursByTags(ctx context.Context, tags []string, excludeID string, limit int) ([]*model.Tour, error)
	DeleteToursByCreator(ctx context.Context, userID string) error
	TourStatsByMonth(ctx context.Context, since time.Time) ([]model.MonthCount, error)
}

// CommentStore 评论存储接口
type CommentStore interface {
	Repository[model.Comment]
	CommentStatsByMonth(ctx context.Context, since time.Time) ([]model.MonthCount, error)
}

// BookmarkStore 收藏存储接口
type BookmarkStore interface {
	Repository[model.Bookmark]
	GetBookmarkByUserTour(ctx context.Context, userID, tourID string) (*model.Bookmark, error)
	DeleteBookmarksByUser(ctx context.Context, userID string) error
}

// HistoryStore 浏览记录存储接口
type HistoryStore interface {
	Repository[model.History]
}

// PersistentStore 持久化存储组合接口
//
// 各实体仓库以方法暴露（泛型方法集不能在同一类型上重名，
// 因此不能直接嵌入多个 Repository[T]）。
type PersistentStore interface {
	Users() UserStore
	Tours() TourStore
	Comments() CommentStore
	Bookmarks() BookmarkStore
	Histories() HistoryStore
	Close() error
}
