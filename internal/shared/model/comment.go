package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/containerd/errdefs"
)

// Comment 线路评论，恰好关联一条线路和一个用户
type Comment struct {
	ID        string    `json:"id" bson:"_id"`
	Body      string    `json:"body" bson:"body"`
	Tour      string    `json:"tour" bson:"tour"`
	User      string    `json:"user" bson:"user"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// GetID 实现 Owned 接口
func (c *Comment) GetID() string { return c.ID }

// OwnerID 评论归发表用户所有
func (c *Comment) OwnerID() string { return c.User }

// Validate 校验评论必填字段
func (c *Comment) Validate() error {
	if strings.TrimSpace(c.Body) == "" {
		return fmt.Errorf("%w: a comment can not be empty", errdefs.ErrInvalidArgument)
	}
	if c.Tour == "" {
		return fmt.Errorf("%w: a comment must belong to a tour", errdefs.ErrInvalidArgument)
	}
	if c.User == "" {
		return fmt.Errorf("%w: a comment must belong to a user", errdefs.ErrInvalidArgument)
	}
	return nil
}
