package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/carshare/internal/models"
	"github.com/langchou/carshare/internal/validation"
)

const cookieMaxAge = 24 * 60 * 60 // 1 天

const msgInvalidRequest = "Solicitud inválida. Verifique los datos enviados."

// Login 登录
func (h *Handler) Login(c *gin.Context) {
	var req validation.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}
	req.Normalize()
	if !bindValid(c, &req) {
		return
	}

	user, err := h.api.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("Login rejected", zap.String("email", req.Email), zap.Error(err))
		respondError(c, err)
		return
	}

	h.signIn(c, user)
	c.JSON(http.StatusOK, gin.H{"data": user})
}

// Register 注册并登录
func (h *Handler) Register(c *gin.Context) {
	var req validation.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}
	req.Normalize()
	if !bindValid(c, &req) {
		return
	}

	user, err := h.api.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.logger.Info("Register rejected", zap.String("email", req.Email), zap.Error(err))
		respondError(c, err)
		return
	}

	h.signIn(c, user)
	c.JSON(http.StatusCreated, gin.H{"data": user})
}

// Logout 清除 Cookie
func (h *Handler) Logout(c *gin.Context) {
	if userID, err := c.Cookie(cookieUser); err == nil && userID != "" {
		h.sessions.Unwatch(userID)
	}
	h.setCookie(c, cookieUser, "", -1, true)
	h.setCookie(c, cookieName, "", -1, false)
	c.JSON(http.StatusOK, gin.H{"message": "Sesión cerrada"})
}

func (h *Handler) signIn(c *gin.Context, user *models.User) {
	h.setCookie(c, cookieUser, user.ID, cookieMaxAge, true)
	h.setCookie(c, cookieName, user.Name, cookieMaxAge, false)
	h.sessions.Watch(user.ID)
	h.logger.Info("User signed in", zap.String("user_id", user.ID))
}

// setCookie name Cookie 供前端显示，不设 HttpOnly
func (h *Handler) setCookie(c *gin.Context, name, value string, maxAge int, httpOnly bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", h.cfg.IsProduction(), httpOnly)
}

// bindValid 校验表单，失败时输出 422 和字段错误
func bindValid(c *gin.Context, form any) bool {
	err := validation.Struct(form)
	if err == nil {
		return true
	}
	var verrs *validation.Errors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verrs.Error(), "fields": verrs.ByField()})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
	return false
}
