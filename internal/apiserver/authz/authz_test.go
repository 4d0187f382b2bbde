package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"touropedia/internal/apiserver/auth"
	"touropedia/internal/shared/model"
)

// TestCanAccess 授权真值表：管理员放行，其余仅限本人
func TestCanAccess(t *testing.T) {
	owner := &auth.AuthUser{ID: "user-1", Role: model.UserRoleUser}
	stranger := &auth.AuthUser{ID: "user-2", Role: model.UserRoleUser}
	admin := &auth.AuthUser{ID: "user-9", Role: model.UserRoleAdmin}
	guide := &auth.AuthUser{ID: "user-3", Role: model.UserRoleGuide}

	tests := []struct {
		name      string
		requester *auth.AuthUser
		ownerID   string
		want      bool
	}{
		{"所有者可访问", owner, "user-1", true},
		{"非所有者拒绝", stranger, "user-1", false},
		{"管理员放行任意资源", admin, "user-1", true},
		{"向导角色无特权", guide, "user-1", false},
		{"未认证拒绝", nil, "user-1", false},
		{"空 ID 不匹配空所有者", &auth.AuthUser{ID: "", Role: model.UserRoleUser}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, action := range []Action{ActionRead, ActionUpdate, ActionDelete} {
				assert.Equal(t, tt.want, CanAccess(tt.requester, tt.ownerID, action))
			}
		})
	}
}
