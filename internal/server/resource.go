package server

import (
	"errors"
	"net/http"
	"strconv"

	"newsdesk/internal/auth"
	"newsdesk/internal/metrics"
	"newsdesk/internal/policy"
	"newsdesk/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// guard 在进入 handler 前执行资源声明的访问策略，被拒绝的请求不会触达存储层。
func guard(resource string, v policy.Variant, a policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, authenticated := auth.CurrentUser(c)
		err := policy.Authorize(v, a, authenticated)
		if err == nil {
			c.Next()
			return
		}
		if errors.Is(err, policy.ErrNotAuthenticated) {
			metrics.AccessDeniedTotal.WithLabelValues(resource, a.String(), "unauthenticated").Inc()
			c.Header("WWW-Authenticate", "Token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}
		metrics.AccessDeniedTotal.WithLabelValues(resource, a.String(), "forbidden").Inc()
		log.Warn().Str("resource", resource).Str("action", a.String()).Uint("user_id", auth.GetUserID(c)).Msg("access denied")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "You do not have permission to perform this action."})
	}
}

// pathID 解析 :id；非法 id 与不存在的记录一样返回 404。
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return 0, false
	}
	return uint(id), true
}

// PostHandler 暴露文章的五种动作，访问策略在构造时显式声明。
type PostHandler struct {
	svc    *service.PostService
	policy policy.Variant
}

func NewPostHandler(svc *service.PostService, v policy.Variant) *PostHandler {
	return &PostHandler{svc: svc, policy: v}
}

// postRequest 只负责解码；长度等规则在 service 层按去除首尾空白后的值校验。
type postRequest struct {
	Headline *string `json:"headline"`
	Content  *string `json:"content"`
	Tags     *string `json:"tags"`
}

func (r postRequest) input() service.PostInput {
	return service.PostInput{Headline: r.Headline, Content: r.Content, Tags: r.Tags}
}

func (h *PostHandler) Register(g *gin.RouterGroup) {
	g.GET("/", guard("post", h.policy, policy.List), h.List)
	g.POST("/", guard("post", h.policy, policy.Create), h.Create)
	g.GET("/:id/", guard("post", h.policy, policy.Retrieve), h.Retrieve)
	g.PUT("/:id/", guard("post", h.policy, policy.Update), h.update(false))
	g.PATCH("/:id/", guard("post", h.policy, policy.Update), h.update(true))
	g.DELETE("/:id/", guard("post", h.policy, policy.Delete), h.Destroy)
}

func (h *PostHandler) List(c *gin.Context) {
	posts, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err, "list posts")
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) Retrieve(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	post, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "retrieve post")
		return
	}
	c.JSON(http.StatusOK, post)
}

// Create 作者取自当前认证用户，请求体中的 author 字段被忽略。
func (h *PostHandler) Create(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
		return
	}
	var req postRequest
	if err := bindJSON(c, &req); err != nil {
		writeValidation(c, "Invalid input.", fieldErrors(err))
		return
	}
	post, err := h.svc.Create(c.Request.Context(), user.ID, req.input())
	if err != nil {
		writeError(c, err, "create post")
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) update(partial bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req postRequest
		if err := bindJSON(c, &req); err != nil {
			writeValidation(c, "Invalid input.", fieldErrors(err))
			return
		}
		post, err := h.svc.Update(c.Request.Context(), id, req.input(), partial)
		if err != nil {
			writeError(c, err, "update post")
			return
		}
		c.JSON(http.StatusOK, post)
	}
}

func (h *PostHandler) Destroy(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err, "delete post")
		return
	}
	c.Status(http.StatusNoContent)
}

// MessageHandler 暴露短消息的五种动作。
type MessageHandler struct {
	svc    *service.MessageService
	policy policy.Variant
}

func NewMessageHandler(svc *service.MessageService, v policy.Variant) *MessageHandler {
	return &MessageHandler{svc: svc, policy: v}
}

type messageRequest struct {
	Content *string `json:"content"`
}

func (h *MessageHandler) Register(g *gin.RouterGroup) {
	g.GET("/", guard("message", h.policy, policy.List), h.List)
	g.POST("/", guard("message", h.policy, policy.Create), h.Create)
	g.GET("/:id/", guard("message", h.policy, policy.Retrieve), h.Retrieve)
	g.PUT("/:id/", guard("message", h.policy, policy.Update), h.update(false))
	g.PATCH("/:id/", guard("message", h.policy, policy.Update), h.update(true))
	g.DELETE("/:id/", guard("message", h.policy, policy.Delete), h.Destroy)
}

func (h *MessageHandler) List(c *gin.Context) {
	msgs, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *MessageHandler) Retrieve(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	msg, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "retrieve message")
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) Create(c *gin.Context) {
	var req messageRequest
	if err := bindJSON(c, &req); err != nil {
		writeValidation(c, "Invalid input.", fieldErrors(err))
		return
	}
	msg, err := h.svc.Create(c.Request.Context(), req.Content)
	if err != nil {
		writeError(c, err, "create message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) update(partial bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req messageRequest
		if err := bindJSON(c, &req); err != nil {
			writeValidation(c, "Invalid input.", fieldErrors(err))
			return
		}
		msg, err := h.svc.Update(c.Request.Context(), id, req.Content, partial)
		if err != nil {
			writeError(c, err, "update message")
			return
		}
		c.JSON(http.StatusOK, msg)
	}
}

func (h *MessageHandler) Destroy(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err, "delete message")
		return
	}
	c.Status(http.StatusNoContent)
}
