package middleware

import (
	"net/http"
	"strings"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xlog"

	"github.com/gin-gonic/gin"
)

const retryAfterSeconds = "1"

// BodyLimitMiddleware 请求体超过 n 字节时返回 413，未声明长度的请求在读取时截断
func BodyLimitMiddleware(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n <= 0 || c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}
		if c.Request.ContentLength > n {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "request body too large",
				"kind":  xerror.KindContractMismatch.String(),
				"limit": n,
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

// InflightMiddleware 匹配 prefixes 的路由最多同时处理 limit 个请求，满载时立即返回 503
//
// prefixes 为空时作用于所有路由
func InflightMiddleware(limit int, prefixes ...string) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	slots := make(chan struct{}, limit)
	return func(c *gin.Context) {
		if !matchPrefix(c.Request.URL.Path, prefixes) {
			c.Next()
			return
		}
		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
			c.Next()
		default:
			xlog.Warn(c.Request.Context(), "[XGin-InflightMiddleware] %s rejected, inflight=%d", c.Request.URL.Path, limit)
			c.Header("Retry-After", retryAfterSeconds)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "too many runs in flight",
				"kind":  xerror.KindModelUnavailable.String(),
			})
		}
	}
}

func matchPrefix(path string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
