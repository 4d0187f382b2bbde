package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"touropedia/internal/shared/cache"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// ============================================================================
// 限流
// ============================================================================

// TestRateLimit 超过窗口配额后返回 429
func TestRateLimit(t *testing.T) {
	cfg := RateLimitConfig{Max: 3, Window: time.Minute}
	handler := RateLimit(cfg, cache.NewMemory())(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/v1/tours", nil)
		r.RemoteAddr = "1.2.3.4:5678"
		handler.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/v1/tours", nil)
	r.RemoteAddr = "1.2.3.4:5678"
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t,
		`{"status":"fail","message":"too many requests from this IP, please try again later"}`,
		rec.Body.String())

	// 其他 IP 不受影响
	rec = httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/api/v1/tours", nil)
	r.RemoteAddr = "5.6.7.8:1234"
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestRateLimit_Disabled 无计数器时直接放行
func TestRateLimit_Disabled(t *testing.T) {
	handler := RateLimit(DefaultRateLimit(), nil)(okHandler())

	for i := 0; i < 200; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

// TestClientIP 反向代理头优先于连接地址
func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(r))
}

// ============================================================================
// CORS
// ============================================================================

// TestCORS_Preflight 预检请求直接应答
func TestCORS_Preflight(t *testing.T) {
	handler := CORS([]string{"http://localhost:3000"})(okHandler())

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("OPTIONS", "/api/v1/tours", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

// TestCORS_OriginFiltering 未放行的来源不返回 CORS 头
func TestCORS_OriginFiltering(t *testing.T) {
	handler := CORS([]string{"http://localhost:3000"})(okHandler())

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/v1/tours", nil)
	r.Header.Set("Origin", "http://evil.example.com")
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// 空白名单放行所有来源
	rec = httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/api/v1/tours", nil)
	r.Header.Set("Origin", "http://anywhere.example.com")
	CORS(nil)(okHandler()).ServeHTTP(rec, r)
	assert.Equal(t, "http://anywhere.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
