package server

import (
	"context"
	"net/http"
	"time"

	"newsdesk/internal/auth"
	"newsdesk/internal/config"
	"newsdesk/internal/db"
	"newsdesk/internal/metrics"
	"newsdesk/internal/mw"
	"newsdesk/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件与 REST API。每个资源的访问策略来自配置，
// 并在构造 handler 时显式传入。返回的 stop 用于停服时释放后台任务。
func SetupRouter(cfg config.Config, gdb *gorm.DB) (r *gin.Engine, stop func(), err error) {
	postPolicy, messagePolicy, err := cfg.Policies()
	if err != nil {
		return nil, nil, err
	}
	useJSONFieldNames()

	r = gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.RequestID())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env, cfg.CORSAllowedOrigins))
	// token 可选：是否必须认证由各资源的访问策略决定；限流按解析出的用户计数。
	r.Use(auth.TokenMiddleware(gdb))
	limiter := mw.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 2*time.Minute)
	r.Use(limiter.Middleware(mw.ClientKey))

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx, gdb); err != nil {
			log.Warn().Err(err).Msg("healthz")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	users := service.NewUserService(gdb)
	posts := NewPostHandler(service.NewPostService(gdb), postPolicy)
	messages := NewMessageHandler(service.NewMessageService(gdb), messagePolicy)

	api := r.Group("/api")
	api.POST("/auth/login", NewAuthHandler(users).Login)

	posts.Register(api.Group("/admin/posts"))
	messages.Register(api.Group("/messages"))

	log.Info().Stringer("posts", postPolicy).Stringer("messages", messagePolicy).Msg("access policies")
	return r, limiter.Stop, nil
}
