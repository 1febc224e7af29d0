package middleware

import (
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS 跨域中间件
//
// allowOrigins 支持精确地址与 "https://*.school.test" 形式的子域通配，
// 与实时订阅的 websocket 来源校验使用同一份配置。
// 导出文件名通过 Content-Disposition 返回，需要暴露给前端。
func CORS(allowOrigins []string) gin.HandlerFunc {
	exact := make(map[string]bool, len(allowOrigins))
	var patterns []string
	for _, o := range allowOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if strings.Contains(o, "*") {
			patterns = append(patterns, o)
		} else if o != "" {
			exact[o] = true
		}
	}
	allowed := func(origin string) bool {
		if exact[origin] {
			return true
		}
		for _, p := range patterns {
			if ok, _ := path.Match(p, origin); ok {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowed(origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID, Retry-After")
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
