// Package authz 资源访问授权：所有者或管理员
package authz

import (
	"touropedia/internal/apiserver/auth"
)

// Action 对资源执行的操作类型
type Action string

const (
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// CanAccess 判断请求者能否对指定所有者的资源执行操作
//
// 规则对所有操作一致：管理员放行，其余仅限资源所有者本人。
func CanAccess(u *auth.AuthUser, ownerID string, _ Action) bool {
	if u == nil {
		return false
	}
	if u.IsAdmin() {
		return true
	}
	return u.ID != "" && u.ID == ownerID
}
