package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"touropedia/internal/shared/mailer"
	"touropedia/internal/shared/model"
	"touropedia/internal/shared/storage"
)

// fakeUserDB 登录与重置流程用的假用户存储，记录所有落库更新
type fakeUserDB struct {
	storage.UserStore
	user    *model.User
	updates []map[string]interface{}
}

func (f *fakeUserDB) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	if f.user != nil && f.user.Email == email {
		return f.user, nil
	}
	return nil, nil
}

func (f *fakeUserDB) Update(_ context.Context, id string, fields map[string]interface{}) (*model.User, error) {
	f.updates = append(f.updates, fields)
	return f.user, nil
}

func signinUser(t *testing.T, password string) *model.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	return &model.User{
		ID:           "user-1",
		Name:         "Jane Roe",
		Email:        "jane@example.com",
		Role:         model.UserRoleUser,
		PasswordHash: hash,
		Active:       true,
	}
}

func tokenCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	return nil
}

// ============================================================================
// 登录
// ============================================================================

// TestSignin 正确邮箱密码返回 200、令牌与 httpOnly cookie
func TestSignin(t *testing.T) {
	db := &fakeUserDB{user: signinUser(t, "correct horse battery staple")}
	h := NewHandler(testConfig(), db, mailer.NewMock())

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/v1/auth/signin",
		strings.NewReader(`{"email":"Jane@Example.com","password":"correct horse battery staple"}`))
	h.Signin(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string      `json:"status"`
		Token  string      `json:"token"`
		User   *model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, "user-1", body.User.ID)

	// 令牌可用本服务密钥解析
	claims, err := ParseToken(testConfig(), body.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)

	cookie := tokenCookie(rec)
	require.NotNil(t, cookie)
	assert.Equal(t, body.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

// TestSignin_WrongPassword 密码错误返回 401，不发任何令牌
func TestSignin_WrongPassword(t *testing.T) {
	db := &fakeUserDB{user: signinUser(t, "correct horse battery staple")}
	h := NewHandler(testConfig(), db, mailer.NewMock())

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/v1/auth/signin",
		strings.NewReader(`{"email":"jane@example.com","password":"wrong password"}`))
	h.Signin(rec, r)

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "fail", body["status"])
	assert.NotContains(t, body, "token")
	assert.Nil(t, tokenCookie(rec))
}

// TestSignin_UnknownEmail 未知邮箱与密码错误不可区分，同样 401
func TestSignin_UnknownEmail(t *testing.T) {
	h := NewHandler(testConfig(), &fakeUserDB{}, mailer.NewMock())

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/v1/auth/signin",
		strings.NewReader(`{"email":"nobody@example.com","password":"whatever12"}`))
	h.Signin(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, tokenCookie(rec))
}

// ============================================================================
// 密码重置
// ============================================================================

// TestForgotPassword 邮件携带明文令牌，库中只存其 sha-256 哈希
func TestForgotPassword(t *testing.T) {
	db := &fakeUserDB{user: signinUser(t, "correct horse battery staple")}
	mock := mailer.NewMock()
	h := NewHandler(testConfig(), db, mock)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/v1/auth/forgot-password",
		strings.NewReader(`{"email":"jane@example.com"}`))
	h.ForgotPassword(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, db.updates, 1)
	require.Len(t, mock.Sent, 1)

	storedHash, _ := db.updates[0]["password_reset_token"].(string)
	require.NotEmpty(t, storedHash)

	// 从邮件正文取出明文令牌，验证与库中哈希对应
	text := mock.Sent[0].Text
	i := strings.Index(text, "reset-password/")
	require.GreaterOrEqual(t, i, 0)
	token := text[i+len("reset-password/"):]
	if j := strings.IndexByte(token, '\n'); j >= 0 {
		token = token[:j]
	}
	sum := sha256.Sum256([]byte(token))
	assert.Equal(t, hex.EncodeToString(sum[:]), storedHash)
	assert.NotEmpty(t, mock.Sent[0].HTML)
}

// TestForgotPassword_EmailFailureRollsBack 邮件发送失败时回滚令牌并返回 500
func TestForgotPassword_EmailFailureRollsBack(t *testing.T) {
	db := &fakeUserDB{user: signinUser(t, "correct horse battery staple")}
	mock := mailer.NewMock()
	mock.Err = assert.AnError
	h := NewHandler(testConfig(), db, mock)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/v1/auth/forgot-password",
		strings.NewReader(`{"email":"jane@example.com"}`))
	h.ForgotPassword(rec, r)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// 第一次写入令牌，失败后第二次清空
	require.Len(t, db.updates, 2)
	token, _ := db.updates[0]["password_reset_token"].(string)
	assert.NotEmpty(t, token)
	assert.Equal(t, "", db.updates[1]["password_reset_token"])
	assert.Empty(t, mock.Sent)
}
