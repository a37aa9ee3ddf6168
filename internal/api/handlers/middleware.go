package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/carshare/internal/api/carshare"
	"github.com/langchou/carshare/internal/service"
	"github.com/langchou/carshare/internal/state"
)

const (
	headerRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
	ctxUserID       = "user_id"

	cookieUser = "user"
	cookieName = "name"
)

const msgSessionInProgress = "Ya hay un viaje en curso"

// RequestID 为每个请求分配 ID，沿用客户端传入的值
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// RequestLogger 请求日志
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(ctxRequestID)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("HTTP request", fields...)
		case c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics":
			logger.Debug("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}

// Metrics 记录请求耗时，路由使用注册模板避免高基数
func (h *Handler) Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		h.metrics.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// SecurityHeaders 安全响应头
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// RequireUser 要求 user Cookie，否则返回 401
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := c.Cookie(cookieUser)
		if err != nil || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": service.ErrNotAuthenticated.Error()})
			return
		}
		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// currentUser 当前登录用户 ID
func currentUser(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// statusFor 错误对应的 HTTP 状态码
func statusFor(err error) int {
	var apiErr *carshare.APIError
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, state.ErrSessionInProgress):
		return http.StatusConflict
	case errors.As(err, &apiErr):
		switch {
		case apiErr.Status < http.StatusMultipleChoices:
			// 后端拒绝（success=false）
			return http.StatusUnprocessableEntity
		case apiErr.Status >= http.StatusInternalServerError:
			return http.StatusBadGateway
		default:
			return apiErr.Status
		}
	case errors.Is(err, carshare.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, carshare.ErrNetwork), errors.Is(err, carshare.ErrUnexpectedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageFor 错误对应的用户提示
func messageFor(err error) string {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return service.ErrNotAuthenticated.Error()
	case errors.Is(err, state.ErrSessionInProgress):
		return msgSessionInProgress
	default:
		return carshare.UserMessage(err)
	}
}

// respondError 输出错误响应
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{"error": messageFor(err)})
}

// respondDegraded 降级视图：200 + 空数据 + error
func respondDegraded(c *gin.Context, data interface{}, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusOK, gin.H{"data": data, "error": messageFor(err)})
}
