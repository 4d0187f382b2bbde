package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/containerd/errdefs"
)

// Tour 旅游线路
//
// Slug 由标题派生（仅在标题变更时重新生成），冲突时追加数字后缀。
// Likes 为点赞用户 ID 集合，切换语义：同一用户再次点赞即取消。
type Tour struct {
	ID          string   `json:"id" bson:"_id"`
	Title       string   `json:"title" bson:"title"`
	Description string   `json:"description" bson:"description"`
	Slug        string   `json:"slug" bson:"slug"`
	Name        string   `json:"name" bson:"name"`
	Creator     string   `json:"creator" bson:"creator"`
	Tags        []string `json:"tags" bson:"tags"`
	Image       string   `json:"image" bson:"image"`
	Likes       []string `json:"likes" bson:"likes"`

	// Comments 为显式展开结果，由 handler 按需填充，不落库
	Comments []*Comment `json:"comments,omitempty" bson:"-"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// GetID 实现 Owned 接口
func (t *Tour) GetID() string { return t.ID }

// OwnerID 线路归创建者所有
func (t *Tour) OwnerID() string { return t.Creator }

const (
	tourTitleMinLen = 10
	tourTitleMaxLen = 40
)

// Validate 校验线路必填字段与约束
func (t *Tour) Validate() error {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return fmt.Errorf("%w: a tour must have a title", errdefs.ErrInvalidArgument)
	}
	if n := utf8.RuneCountInString(title); n < tourTitleMinLen || n > tourTitleMaxLen {
		return fmt.Errorf("%w: a tour title must be between %d and %d characters",
			errdefs.ErrInvalidArgument, tourTitleMinLen, tourTitleMaxLen)
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("%w: a tour must have a description", errdefs.ErrInvalidArgument)
	}
	if t.Creator == "" {
		return fmt.Errorf("%w: a tour must belong to a user", errdefs.ErrInvalidArgument)
	}
	if len(t.Tags) == 0 {
		return fmt.Errorf("%w: a tour should have at least one tag", errdefs.ErrInvalidArgument)
	}
	return nil
}

// Liked 判断用户是否已点赞
func (t *Tour) Liked(userID string) bool {
	for _, id := range t.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// TagCount 标签聚合结果
type TagCount struct {
	Tag   string `json:"tag" bson:"_id"`
	Count int64  `json:"count" bson:"count"`
}
