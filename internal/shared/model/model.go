// Package model 定义核心数据模型
//
// 五类实体：User、Tour、Comment、Bookmark、History。
// 所有实体通过 Validate 做构造期校验；归属关系以冗余引用字段
// （creator / user）直接挂在子实体上，不使用关联表。
package model

import (
	"crypto/rand"
	"encoding/hex"
)

// Owned 可归属实体接口，供通用 CRUD 与所有权策略使用
type Owned interface {
	GetID() string
	// OwnerID 返回资源所有者（创建者）的用户 ID
	OwnerID() string
	Validate() error
}

// MonthCount 按月统计结果（聚合管道输出）
type MonthCount struct {
	Month int32 `json:"month" bson:"_id"`
	Total int64 `json:"total" bson:"total"`
}

// NewID 生成带前缀的唯一标识符，格式 prefix-xxxxxxxxxxxx
func NewID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}

// 编译期接口检查
var (
	_ Owned = (*User)(nil)
	_ Owned = (*Tour)(nil)
	_ Owned = (*Comment)(nil)
	_ Owned = (*Bookmark)(nil)
	_ Owned = (*History)(nil)
)
