package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireAuth はベアラートークンを検証するミドルウェアを返します。
// サーバー側にセッション状態は持たず、リクエストごとにトークンを
// 再検証してユーザーを解決します。
func (m *Manager) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c)
			return
		}

		username, err := m.tokens.VerifySessionToken(tokenString)
		if err != nil {
			unauthorized(c)
			return
		}

		// トークンが有効でも、参照先のユーザーが消えていれば拒否する
		current, err := m.users.FindByUsername(c.Request.Context(), username)
		if err != nil {
			unauthorized(c)
			return
		}

		c.Set(ContextUserKey, current)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    "UNAUTHORIZED",
		"message": "Could not validate credentials",
	})
}
