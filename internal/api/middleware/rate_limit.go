package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shiivaansh/sortED-sub000/pkg/redis"
	"github.com/shiivaansh/sortED-sub000/pkg/response"
)

// RateLimit 基于 Redis 滑动窗口的限流
//
// 已认证请求按用户计数，匿名请求按客户端 IP 计数；计数键区分路由模板。
// rdb 为 nil 或 Redis 出错时放行。
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		allowed, err := rdb.CheckRateLimit(c.Request.Context(), rateLimitKey(c), limit, window)
		if err == nil && !allowed {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.Abort(c, http.StatusTooManyRequests, 10004, "请求过于频繁，请稍后再试")
			return
		}
		c.Next()
	}
}

func rateLimitKey(c *gin.Context) string {
	subject := "ip:" + c.ClientIP()
	if uid := c.GetString("user_id"); uid != "" {
		subject = "user:" + uid
	}
	return "rate_limit:" + subject + ":" + c.FullPath()
}
