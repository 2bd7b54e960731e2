package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionHeader 会话标识请求头
	SessionHeader = "X-Session-ID"
	sessionKey    = "session_id"
	maxSessionLen = 100
)

// Session 会话中间件，没有携带会话标识时生成一个新的，并在响应头中返回
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(SessionHeader))
		if id == "" || len(id) > maxSessionLen {
			id = "session_" + uuid.NewString()
		}
		c.Set(sessionKey, id)
		c.Header(SessionHeader, id)
		c.Next()
	}
}

// SessionID 从上下文取出会话标识
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
