package auth

import (
	"net/http"
	"strings"

	"touropedia/internal/shared/apierror"
	"touropedia/internal/shared/model"
	"touropedia/internal/shared/storage"
)

// ============================================================================
// 认证中间件
// ============================================================================

// publicExact 无需认证的精确路由（METHOD + 路径）
var publicExact = map[string]bool{
	"GET /health":  true,
	"GET /metrics": true,

	"POST /api/v1/auth/signin":          true,
	"POST /api/v1/auth/google-signin":   true,
	"POST /api/v1/auth/forgot-password": true,
	"POST /api/v1/users/signup":         true,

	"GET /api/v1/tours":                true,
	"GET /api/v1/tours/search":         true,
	"GET /api/v1/tours/search/query":   true,
	"GET /api/v1/tours/tags":           true,
	"POST /api/v1/tours/related-tours": true,
}

// publicPrefix 无需认证的前缀路由
var publicPrefix = []string{
	"POST /api/v1/auth/reset-password/",
	"GET /api/v1/tours/find/",
	"GET /api/v1/tours/details/",
	"GET /api/v1/tours/tag/",
	"GET /api/v1/tours/image/",
	"GET /api/v1/histories/tour/",
}

func isPublicRoute(method, path string) bool {
	key := method + " " + path
	if publicExact[key] {
		return true
	}
	for _, prefix := range publicPrefix {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// extractToken 从 Authorization 头或 cookie 中提取 JWT
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}

// Middleware 认证网关：校验 JWT 并将请求者身份注入 context
//
// 令牌有效还不够，还要求对应用户仍然存在（未被软删除）且签发时间
// 晚于最近一次改密，否则视为过期凭证。
func Middleware(cfg Config, users storage.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicRoute(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			tokenString := extractToken(r)
			if tokenString == "" {
				apierror.Write(w, apierror.Unauthenticated("you are not logged in, please log in to get access"))
				return
			}

			claims, err := ParseToken(cfg, tokenString)
			if err != nil {
				apierror.Write(w, apierror.Unauthenticated("invalid or expired token, please log in again"))
				return
			}

			user, err := users.Get(r.Context(), claims.Subject)
			if err != nil {
				apierror.Write(w, apierror.Internal("failed to verify credentials"))
				return
			}
			if user == nil {
				apierror.Write(w, apierror.Unauthenticated("the user belonging to this token no longer exists"))
				return
			}
			if claims.IssuedAt != nil && user.ChangedPasswordAfter(claims.IssuedAt.Unix()) {
				apierror.Write(w, apierror.Unauthenticated("password was changed recently, please log in again"))
				return
			}

			authUser := &AuthUser{
				ID:    user.ID,
				Name:  user.Name,
				Email: user.Email,
				Role:  user.Role,
			}
			next.ServeHTTP(w, r.WithContext(WithAuthUser(r.Context(), authUser)))
		})
	}
}

// RequireRoles 角色门禁，用于包装需要特定角色的 handler
func RequireRoles(next http.HandlerFunc, roles ...model.UserRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := GetAuthUser(r.Context())
		if user == nil {
			apierror.Write(w, apierror.Unauthenticated("you are not logged in, please log in to get access"))
			return
		}
		for _, role := range roles {
			if user.Role == role {
				next(w, r)
				return
			}
		}
		apierror.Write(w, apierror.Forbidden("you do not have permission to perform this action"))
	}
}
