// Package auth は認証・認可機能を提供します。
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/askpdf/internal/mail"
	"github.com/yourusername/askpdf/internal/user"
)

// ContextUserKey は、ハンドラー間で認証済みユーザーを共有するためのキーです。
const ContextUserKey = "auth.user"

// ユーザーが存在しない場合でも bcrypt 比較を1回実行し、ユーザー名の
// 有無による応答時間の差を出さないためのダミーハッシュです。
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// TokenService はセッション・リセット両トークンの発行と検証を提供します。
type TokenService interface {
	IssueSessionToken(username string) (string, error)
	VerifySessionToken(token string) (string, error)
	IssueResetToken(email string) (string, error)
	VerifyResetToken(token string) (string, error)
}

// Manager は認証まわりのハンドラーと資格情報の検証をまとめた構造体です。
type Manager struct {
	users    user.Repository
	tokens   TokenService
	notifier mail.Notifier
	logger   *slog.Logger
}

// NewManager は認証マネージャーを作成します。
func NewManager(users user.Repository, tokens TokenService, notifier mail.Notifier, logger *slog.Logger) *Manager {
	return &Manager{
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
	}
}

type signupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Signup は POST /auth/signup のハンドラーです。
func (m *Manager) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "email, username and password are required",
		})
		return
	}

	ctx := c.Request.Context()

	// 登録前に重複を確認する。一意制約とは競合し得るため、Create 側の
	// エラー変換が最終的な防衛線になる。
	if _, err := m.users.FindByEmail(ctx, req.Email); err == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "DUPLICATE_EMAIL",
			"message": "Email already registered",
		})
		return
	}
	if _, err := m.users.FindByUsername(ctx, req.Username); err == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "DUPLICATE_USERNAME",
			"message": "Username already taken",
		})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "An internal server error occurred",
		})
		return
	}

	created, err := m.users.Create(ctx, &user.User{
		Email:          req.Email,
		Username:       req.Username,
		HashedPassword: string(hashed),
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrDuplicateEmail):
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "DUPLICATE_EMAIL",
				"message": "Email already registered",
			})
		case errors.Is(err, user.ErrDuplicateUsername):
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "DUPLICATE_USERNAME",
				"message": "Username already taken",
			})
		default:
			m.logger.ErrorContext(ctx, "failed to create user", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "An internal server error occurred",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, created)
}

// Login は POST /auth/login のハンドラーです。OAuth2のパスワードフローと
// 同じくフォームエンコードで受け取ります。
func (m *Manager) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "username and password are required",
		})
		return
	}

	verified := m.VerifyCredentials(c.Request.Context(), username, password)
	if verified == nil {
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "INVALID_CREDENTIALS",
			"message": "Incorrect username or password",
		})
		return
	}

	accessToken, err := m.tokens.IssueSessionToken(verified.Username)
	if err != nil {
		m.logger.ErrorContext(c.Request.Context(), "failed to issue session token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "An internal server error occurred",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"token_type":   "bearer",
	})
}

// Me は GET /auth/me のハンドラーです。
func (m *Manager) Me(c *gin.Context) {
	value, exists := c.Get(ContextUserKey)
	current, ok := value.(*user.User)
	if !exists || !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "UNAUTHORIZED",
			"message": "Authentication required",
		})
		return
	}
	c.JSON(http.StatusOK, current)
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// forgotPasswordMessage はメールアドレスの有無にかかわらず同一の応答を返す
// ためのメッセージです。
const forgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."

// ForgotPassword は POST /auth/forgot-password のハンドラーです。
// アカウントの存在を漏らさないため、常に同じ成功応答を返します。
func (m *Manager) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "email is required",
		})
		return
	}

	if found, err := m.users.FindByEmail(c.Request.Context(), req.Email); err == nil {
		resetToken, err := m.tokens.IssueResetToken(found.Email)
		if err != nil {
			m.logger.ErrorContext(c.Request.Context(), "failed to issue reset token", "error", err)
		} else {
			// 送信に失敗してもリクエストは失敗させない。リクエストの
			// コンテキストは応答後に破棄されるため独立したものを使う。
			go func(email, token string) {
				if err := m.notifier.SendPasswordReset(context.Background(), email, token); err != nil {
					m.logger.Error("failed to send password reset email", "error", err)
				}
			}(found.Email, resetToken)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": forgotPasswordMessage})
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ResetPassword は POST /auth/reset-password のハンドラーです。
func (m *Manager) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "token and new_password are required",
		})
		return
	}

	email, err := m.tokens.VerifyResetToken(req.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_TOKEN",
			"message": "Invalid or expired reset token",
		})
		return
	}

	ctx := c.Request.Context()
	found, err := m.users.FindByEmail(ctx, email)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "USER_NOT_FOUND",
			"message": "User not found",
		})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "An internal server error occurred",
		})
		return
	}

	if err := m.users.UpdatePassword(ctx, found.ID, string(hashed)); err != nil {
		m.logger.ErrorContext(ctx, "failed to update password", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "An internal server error occurred",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset successfully"})
}

// VerifyCredentials はユーザー名とパスワードを検証します。ユーザーが
// 存在しない場合もパスワードが誤っている場合も区別せず nil を返します。
func (m *Manager) VerifyCredentials(ctx context.Context, username, password string) *user.User {
	found, err := m.users.FindByUsername(ctx, username)
	if err != nil {
		// 不明なユーザーでも1回ハッシュ比較を行い、計算コストを揃える
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil
	}

	if bcrypt.CompareHashAndPassword([]byte(found.HashedPassword), []byte(password)) != nil {
		return nil
	}

	return found
}
