package server

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"touropedia/internal/shared/cache"
)

// ============================================================================
// 限流
// ============================================================================

// RateLimitConfig 固定窗口限流配置
type RateLimitConfig struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

// DefaultRateLimit 每 IP 15 分钟 100 次
func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{Max: 100, Window: 15 * time.Minute}
}

// clientIP 提取客户端 IP，优先取反向代理头
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit 按客户端 IP 固定窗口限流
//
// 计数器不可用时放行并记日志，限流是保护措施而非正确性前提。
func RateLimit(cfg RateLimitConfig, counter cache.RateLimitCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if counter == nil || cfg.Max <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n, err := counter.Hit(r.Context(), "ratelimit:"+clientIP(r), cfg.Window)
			if err != nil {
				log.Printf("[server] rate limit counter failed: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if n > int64(cfg.Max) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"status":  "fail",
					"message": "too many requests from this IP, please try again later",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
