// Package server HTTP 服务组装：路由注册与中间件链
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"touropedia/internal/apiserver/auth"
	"touropedia/internal/apiserver/bookmark"
	"touropedia/internal/apiserver/comment"
	"touropedia/internal/apiserver/history"
	"touropedia/internal/apiserver/tour"
	"touropedia/internal/apiserver/user"
	"touropedia/internal/shared/cache"
	"touropedia/internal/shared/mailer"
	"touropedia/internal/shared/objstore"
	"touropedia/internal/shared/storage"
)

var startTime = time.Now()

// Config 服务配置
type Config struct {
	// AllowedOrigins CORS 放行的来源，空表示放行所有
	AllowedOrigins []string        `yaml:"allowed_origins"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// Deps 服务依赖
//
// Cache 与 Images 可为 nil：缓存缺失时限流关闭、标签聚合直查，
// 对象存储缺失时图片端点返回错误，其余功能不受影响。
type Deps struct {
	AuthCfg auth.Config
	Store   storage.PersistentStore
	Cache   cache.Cache
	Images  *objstore.Client
	Mail    mailer.Mailer
}

// NewRouter 组装全部路由与中间件链
//
// 中间件自外向内：指标观测 → CORS → 限流 → 认证网关。
func NewRouter(cfg Config, deps Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	var (
		tagCache cache.TagCache
		rlCache  cache.RateLimitCache
	)
	if deps.Cache != nil {
		tagCache = deps.Cache
		rlCache = deps.Cache
	}

	store := deps.Store
	auth.NewHandler(deps.AuthCfg, store.Users(), deps.Mail).RegisterRoutes(mux)
	user.NewHandler(deps.AuthCfg, store.Users(), store.Tours(), store.Comments(), store.Bookmarks()).RegisterRoutes(mux)
	tour.NewHandler(store.Tours(), store.Comments(), tagCache, deps.Images).RegisterRoutes(mux)
	comment.NewHandler(store.Comments()).RegisterRoutes(mux)
	bookmark.NewHandler(store.Bookmarks()).RegisterRoutes(mux)
	history.NewHandler(store.Histories()).RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = auth.Middleware(deps.AuthCfg, store.Users())(handler)
	handler = RateLimit(cfg.RateLimit, rlCache)(handler)
	handler = CORS(cfg.AllowedOrigins)(handler)
	handler = Metrics(handler)
	return handler
}

// handleHealth 健康检查
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(startTime).String(),
	})
}

// ============================================================================
// CORS
// ============================================================================

// CORS 跨域中间件，浏览器前端与 API 分域部署时需要
func CORS(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(allowed, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}
