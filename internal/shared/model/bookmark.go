package model

import (
	"fmt"
	"time"

	"github.com/containerd/errdefs"
)

// Bookmark 收藏，(user, tour) 组合唯一
type Bookmark struct {
	ID        string    `json:"id" bson:"_id"`
	Tour      string    `json:"tour" bson:"tour"`
	User      string    `json:"user" bson:"user"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// GetID 实现 Owned 接口
func (b *Bookmark) GetID() string { return b.ID }

// OwnerID 收藏归创建用户所有
func (b *Bookmark) OwnerID() string { return b.User }

// Validate 校验收藏必填字段
func (b *Bookmark) Validate() error {
	if b.Tour == "" {
		return fmt.Errorf("%w: a bookmark must reference a tour", errdefs.ErrInvalidArgument)
	}
	if b.User == "" {
		return fmt.Errorf("%w: a bookmark must belong to a user", errdefs.ErrInvalidArgument)
	}
	return nil
}
