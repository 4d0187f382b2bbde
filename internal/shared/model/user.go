package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/containerd/errdefs"
)

// UserRole 用户角色
type UserRole string

const (
	UserRoleAdmin     UserRole = "admin"
	UserRoleGuide     UserRole = "guide"
	UserRoleLeadGuide UserRole = "lead-guide"
	UserRoleUser      UserRole = "user"
)

// ValidRole 校验角色是否在枚举内
func ValidRole(r UserRole) bool {
	switch r {
	case UserRoleAdmin, UserRoleGuide, UserRoleLeadGuide, UserRoleUser:
		return true
	}
	return false
}

// User 用户
//
// PasswordHash 永不序列化到客户端（json:"-"）。
// Active 为软删除标记：false 表示账号已注销，所有常规查询均排除。
type User struct {
	ID           string   `json:"id" bson:"_id"`
	Name         string   `json:"name" bson:"name"`
	Email        string   `json:"email" bson:"email"`
	Role         UserRole `json:"role" bson:"role"`
	PasswordHash string   `json:"-" bson:"password_hash"`
	Avatar       string   `json:"avatar,omitempty" bson:"avatar,omitempty"`
	GoogleID     string   `json:"google_id,omitempty" bson:"google_id,omitempty"`

	PasswordChangedAt    time.Time `json:"-" bson:"password_changed_at,omitempty"`
	PasswordResetToken   string    `json:"-" bson:"password_reset_token,omitempty"`
	PasswordResetExpires time.Time `json:"-" bson:"password_reset_expires,omitempty"`

	Active    bool      `json:"active" bson:"active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// GetID 实现 Owned 接口
func (u *User) GetID() string { return u.ID }

// OwnerID 用户资源的所有者即其本人
func (u *User) OwnerID() string { return u.ID }

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail 邮箱统一小写并去除首尾空白
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate 校验用户必填字段
func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: please tell us your name", errdefs.ErrInvalidArgument)
	}
	if u.Email == "" {
		return fmt.Errorf("%w: please provide your email address", errdefs.ErrInvalidArgument)
	}
	if !emailRegex.MatchString(u.Email) {
		return fmt.Errorf("%w: please enter a valid email address", errdefs.ErrInvalidArgument)
	}
	if !ValidRole(u.Role) {
		return fmt.Errorf("%w: invalid role %q", errdefs.ErrInvalidArgument, u.Role)
	}
	return nil
}

// ChangedPasswordAfter 判断密码是否在令牌签发之后被修改过
//
// tokenIssuedAt 为 JWT iat（Unix 秒），比较精度为秒。
func (u *User) ChangedPasswordAfter(tokenIssuedAt int64) bool {
	if u.PasswordChangedAt.IsZero() {
		return false
	}
	return tokenIssuedAt < u.PasswordChangedAt.Unix()
}
