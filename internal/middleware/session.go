package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionKey gin.Context 中保存会话 id 的 key
const SessionKey = "session_id"

// Session 读取会话 cookie，缺失或格式不对时签发新的 uuid
func Session(cookieName string, maxAge time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(cookieName)
		if err != nil || !validUUID(id) {
			id = uuid.NewString()
		}

		// 每次请求都续期
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     cookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(maxAge.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		c.Set(SessionKey, id)
		c.Next()
	}
}

// SessionID 当前请求的会话 id
func SessionID(c *gin.Context) string {
	return c.GetString(SessionKey)
}

func validUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
