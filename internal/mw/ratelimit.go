package mw

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"newsdesk/internal/auth"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc 决定请求落在哪个令牌桶。
type KeyFunc func(c *gin.Context) string

// ClientKey 已认证的请求按用户计数，同一账户换 IP 也共享额度；
// 匿名请求（包括携带无效 token 的）按来源 IP 计数。需挂在 auth.TokenMiddleware 之后。
func ClientKey(c *gin.Context) string {
	if user, ok := auth.CurrentUser(c); ok {
		return "user:" + strconv.FormatUint(uint64(user.ID), 10)
	}
	return "ip:" + clientIP(c.Request.RemoteAddr)
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter 按 客户端+路由 维护令牌桶，空闲超过 ttl 的桶由后台 goroutine 回收。
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int
	ttl     time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewLimiter(r rate.Limit, burst int, ttl time.Duration) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		rate:    r,
		burst:   burst,
		ttl:     ttl,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

func (l *Limiter) limiterFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

func (l *Limiter) sweep() {
	defer close(l.done)
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

func (l *Limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, k)
		}
	}
}

// Stop 停止回收 goroutine 并等待其退出，可重复调用。
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

// Middleware 超出速率时返回 429，并通过 Retry-After 告知需要等待的秒数。
func (l *Limiter) Middleware(key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		now := time.Now()
		res := l.limiterFor(key(c)+"|"+route, now).ReserveN(now, 1)
		if delay := res.DelayFrom(now); !res.OK() || delay > 0 {
			res.CancelAt(now)
			c.Header("Retry-After", strconv.Itoa(retryAfter(delay)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "Request was throttled."})
			return
		}
		c.Next()
	}
}

func retryAfter(d time.Duration) int {
	if d == rate.InfDuration {
		return 60
	}
	return int(math.Ceil(d.Seconds()))
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
