package model

import (
	"fmt"
	"time"

	"github.com/containerd/errdefs"
)

// History 浏览记录，同一 (user, tour) 可存在多条
type History struct {
	ID        string    `json:"id" bson:"_id"`
	Tour      string    `json:"tour" bson:"tour"`
	User      string    `json:"user" bson:"user"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// GetID 实现 Owned 接口
func (h *History) GetID() string { return h.ID }

// OwnerID 浏览记录归产生它的用户所有
func (h *History) OwnerID() string { return h.User }

// Validate 校验浏览记录必填字段
func (h *History) Validate() error {
	if h.Tour == "" {
		return fmt.Errorf("%w: a history must reference a tour", errdefs.ErrInvalidArgument)
	}
	if h.User == "" {
		return fmt.Errorf("%w: a history must belong to a user", errdefs.ErrInvalidArgument)
	}
	return nil
}
