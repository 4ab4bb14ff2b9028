package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvStudio/internal/auth"
)

const sessionKey = "session"

// TokenVerifier 校验访问令牌，通常是 *auth.Verifier。
type TokenVerifier interface {
	Verify(token string) (auth.Session, error)
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// AuthMiddleware 校验 Bearer 令牌并把会话写入上下文。
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		parts := strings.Fields(c.GetHeader("Authorization"))
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c)
			return
		}

		session, err := verifier.Verify(parts[1])
		if err != nil || !session.Valid() {
			abortUnauthorized(c)
			return
		}

		SetSession(c, session)
		c.Next()
	}
}

// SetSession 写入会话，测试中也用它模拟已登录请求。
func SetSession(c *gin.Context, session auth.Session) {
	c.Set(sessionKey, session)
}

// SessionFromContext 读取 AuthMiddleware 写入的会话。
func SessionFromContext(c *gin.Context) (auth.Session, bool) {
	value, ok := c.Get(sessionKey)
	if !ok {
		return auth.Session{}, false
	}
	session, ok := value.(auth.Session)
	if !ok || !session.Valid() {
		return auth.Session{}, false
	}
	return session, true
}
