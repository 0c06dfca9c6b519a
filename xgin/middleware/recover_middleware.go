package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime"
	"strings"

	"github.com/xiaoshicae/xinfer/xlog"

	"github.com/gin-gonic/gin"
)

const maxStackSize = 16384

// GinXRecoverMiddleware panic recover 中间件，recoveryFunc 为空时返回500
func GinXRecoverMiddleware(recoveryFunc gin.RecoveryFunc) gin.HandlerFunc {
	if recoveryFunc == nil {
		recoveryFunc = defaultHandleRecovery
	}
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			brokenPipe := isBrokenPipe(r)
			xlog.Error(c.Request.Context(), "XInfer http panic recovered, err=[%v]",
				r,
				xlog.KV("panic_broken_pipe", brokenPipe),
				xlog.KV("panic_err", fmt.Sprintf("%v", r)),
				xlog.KV("panic_stack", string(stack())),
			)

			if brokenPipe || c.Writer.Written() {
				c.Abort()
				return
			}
			recoveryFunc(c, r)
		}()
		c.Next()
	}
}

func defaultHandleRecovery(c *gin.Context, _ any) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func isBrokenPipe(r any) bool {
	ne, ok := r.(*net.OpError)
	if !ok {
		return false
	}
	var se *os.SyscallError
	if !errors.As(ne, &se) {
		return false
	}
	s := strings.ToLower(se.Error())
	return strings.Contains(s, "broken pipe") || strings.Contains(s, "connection reset by peer")
}

func stack() []byte {
	buf := make([]byte, maxStackSize)
	n := runtime.Stack(buf, false)
	return buf[:n]
}
