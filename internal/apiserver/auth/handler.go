package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"touropedia/internal/shared/apierror"
	"touropedia/internal/shared/mailer"
	"touropedia/internal/shared/model"
	"touropedia/internal/shared/storage"
)

const (
	minPasswordLen = 8
	resetTokenTTL  = 10 * time.Minute
)

// Handler 认证相关 HTTP 处理器
type Handler struct {
	cfg   Config
	users storage.UserStore
	mail  mailer.Mailer
}

// NewHandler 创建认证处理器
func NewHandler(cfg Config, users storage.UserStore, mail mailer.Mailer) *Handler {
	return &Handler{cfg: cfg, users: users, mail: mail}
}

// RegisterRoutes 注册认证路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/signin", h.Signin)
	mux.HandleFunc("POST /api/v1/auth/google-signin", h.GoogleSignin)
	mux.HandleFunc("POST /api/v1/auth/forgot-password", h.ForgotPassword)
	mux.HandleFunc("POST /api/v1/auth/reset-password/{token}", h.ResetPassword)
	mux.HandleFunc("PATCH /api/v1/auth/update-my-password", h.UpdateMyPassword)
}

// ============================================================================
// 登录
// ============================================================================

// Signin 邮箱密码登录
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.Write(w, apierror.InvalidArgument("invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		apierror.Write(w, apierror.InvalidArgument("please provide email and password"))
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), model.NormalizeEmail(req.Email))
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to look up user"))
		return
	}
	if user == nil || user.PasswordHash == "" || !CheckPassword(req.Password, user.PasswordHash) {
		apierror.Write(w, apierror.Unauthenticated("incorrect email or password"))
		return
	}

	h.sendToken(w, r, http.StatusOK, user)
}

// GoogleSignin Google OAuth 登录，首次登录时自动建档
func (h *Handler) GoogleSignin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		GoogleID string `json:"googleId"`
		Avatar   string `json:"avatar"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.Write(w, apierror.InvalidArgument("invalid request body"))
		return
	}
	if req.Email == "" || req.GoogleID == "" {
		apierror.Write(w, apierror.InvalidArgument("please provide email and googleId"))
		return
	}

	email := model.NormalizeEmail(req.Email)
	user, err := h.users.GetUserByEmail(r.Context(), email)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to look up user"))
		return
	}
	if user == nil {
		now := time.Now()
		user = &model.User{
			ID:        model.NewID("user"),
			Name:      req.Name,
			Email:     email,
			Role:      model.UserRoleUser,
			GoogleID:  req.GoogleID,
			Avatar:    req.Avatar,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := user.Validate(); err != nil {
			apierror.Write(w, err)
			return
		}
		if err := h.users.Insert(r.Context(), user); err != nil {
			apierror.Write(w, apierror.Internal("failed to create user"))
			return
		}
		h.sendToken(w, r, http.StatusCreated, user)
		return
	}

	h.sendToken(w, r, http.StatusOK, user)
}

// ============================================================================
// 密码重置
// ============================================================================

// ForgotPassword 签发密码重置令牌并发送邮件
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		apierror.Write(w, apierror.InvalidArgument("please provide email"))
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), model.NormalizeEmail(req.Email))
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to look up user"))
		return
	}
	if user == nil {
		apierror.Write(w, apierror.NotFound("there is no user with that email address"))
		return
	}

	// 明文令牌只出现在邮件里，库中仅保存哈希
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		apierror.Write(w, apierror.Internal("failed to generate reset token"))
		return
	}
	token := hex.EncodeToString(raw)
	hash := sha256.Sum256([]byte(token))

	_, err = h.users.Update(r.Context(), user.ID, map[string]interface{}{
		"password_reset_token":   hex.EncodeToString(hash[:]),
		"password_reset_expires": time.Now().Add(resetTokenTTL),
		"updated_at":             time.Now(),
	})
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to store reset token"))
		return
	}

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	resetURL := fmt.Sprintf("%s://%s/reset-password/%s", scheme, r.Host, token)

	msg := &mailer.Message{
		To:      []string{user.Email},
		Subject: "Your password reset token (valid for 10 minutes)",
		Text:    fmt.Sprintf("Forgot your password? Reset it here: %s\nIf you didn't request this, please ignore this email.", resetURL),
		HTML:    fmt.Sprintf(`<p>Forgot your password? <a href=%q>Reset it here</a>.</p><p>If you didn't request this, please ignore this email.</p>`, resetURL),
	}
	if err := h.mail.Send(r.Context(), msg); err != nil {
		log.Printf("[auth] failed to send reset email to %s: %v", user.Email, err)
		// 回滚令牌，避免留下无法送达的有效令牌
		if _, rbErr := h.users.Update(r.Context(), user.ID, map[string]interface{}{
			"password_reset_token":   "",
			"password_reset_expires": time.Time{},
		}); rbErr != nil {
			log.Printf("[auth] failed to roll back reset token for %s: %v", user.ID, rbErr)
		}
		apierror.Write(w, apierror.Internal("there was an error sending the email, try again later"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "token sent to email",
	})
}

// ResetPassword 用邮件中的令牌设置新密码
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	var req struct {
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.Write(w, apierror.InvalidArgument("invalid request body"))
		return
	}
	if err := ValidateNewPassword(req.Password, req.PasswordConfirm); err != nil {
		apierror.Write(w, err)
		return
	}

	hash := sha256.Sum256([]byte(token))
	user, err := h.users.GetUserByResetToken(r.Context(), hex.EncodeToString(hash[:]), time.Now())
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to look up reset token"))
		return
	}
	if user == nil {
		apierror.Write(w, apierror.InvalidArgument("token is invalid or has expired"))
		return
	}

	updated, err := h.changePassword(r.Context(), user.ID, req.Password)
	if err != nil {
		apierror.Write(w, err)
		return
	}

	h.sendToken(w, r, http.StatusOK, updated)
}

// UpdateMyPassword 已登录用户修改自己的密码
func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	requester := GetAuthUser(r.Context())
	if requester == nil {
		apierror.Write(w, apierror.Unauthenticated("you are not logged in, please log in to get access"))
		return
	}

	var req struct {
		PasswordCurrent string `json:"passwordCurrent"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.Write(w, apierror.InvalidArgument("invalid request body"))
		return
	}
	if err := ValidateNewPassword(req.Password, req.PasswordConfirm); err != nil {
		apierror.Write(w, err)
		return
	}

	user, err := h.users.Get(r.Context(), requester.ID)
	if err != nil || user == nil {
		apierror.Write(w, apierror.Internal("failed to look up user"))
		return
	}
	if user.PasswordHash == "" || !CheckPassword(req.PasswordCurrent, user.PasswordHash) {
		apierror.Write(w, apierror.Unauthenticated("your current password is wrong"))
		return
	}

	updated, err := h.changePassword(r.Context(), user.ID, req.Password)
	if err != nil {
		apierror.Write(w, err)
		return
	}

	h.sendToken(w, r, http.StatusOK, updated)
}

// ============================================================================
// 辅助函数
// ============================================================================

// ValidateNewPassword 校验新密码长度与两次输入一致性
func ValidateNewPassword(password, confirm string) error {
	if len(password) < minPasswordLen {
		return apierror.InvalidArgument("password must be at least %d characters", minPasswordLen)
	}
	if password != confirm {
		return apierror.InvalidArgument("passwords do not match")
	}
	return nil
}

// changePassword 落库新密码哈希并回拨 password_changed_at 一秒，
// 确保改密前签发的令牌全部失效而改密响应里的新令牌仍然有效
func (h *Handler) changePassword(ctx context.Context, userID, password string) (*model.User, error) {
	hashed, err := HashPassword(password)
	if err != nil {
		return nil, apierror.Internal("failed to hash password")
	}
	updated, err := h.users.Update(ctx, userID, map[string]interface{}{
		"password_hash":          hashed,
		"password_changed_at":    time.Now().Add(-time.Second),
		"password_reset_token":   "",
		"password_reset_expires": time.Time{},
		"updated_at":             time.Now(),
	})
	if err != nil {
		return nil, apierror.Internal("failed to update password")
	}
	return updated, nil
}

func (h *Handler) sendToken(w http.ResponseWriter, r *http.Request, status int, user *model.User) {
	SendToken(w, r, h.cfg, status, user)
}

// SendToken 签发 JWT，写入 httpOnly cookie 并随响应体返回
func SendToken(w http.ResponseWriter, r *http.Request, cfg Config, status int, user *model.User) {
	token, err := GenerateToken(cfg, user)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to generate token"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(cfg.CookieTTL),
		HttpOnly: true,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, status, map[string]interface{}{
		"status": "success",
		"token":  token,
		"user":   user,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[auth] failed to encode response: %v", err)
	}
}

// ============================================================================
// 管理员引导
// ============================================================================

// EnsureAdminUser 启动时保证存在一个管理员账号，已存在则跳过
func EnsureAdminUser(ctx context.Context, users storage.UserStore, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	email = model.NormalizeEmail(email)

	existing, err := users.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("look up admin user: %w", err)
	}
	if existing != nil {
		return nil
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	now := time.Now()
	admin := &model.User{
		ID:           model.NewID("user"),
		Name:         "Administrator",
		Email:        email,
		Role:         model.UserRoleAdmin,
		PasswordHash: hashed,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Insert(ctx, admin); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Printf("[auth] bootstrapped admin user %s", email)
	return nil
}
