package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"newsdesk/internal/metrics"
	"newsdesk/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const userCtxKey = "user"

// 用户名不存在时也做一次 bcrypt 比较，使两种失败的耗时接近。
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("newsdesk-dummy-password"), bcrypt.DefaultCost)

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func VerifyPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Authenticate 校验用户名密码。用户名不存在与密码错误都返回 ok=false，
// 只有存储错误才返回 err。
func Authenticate(ctx context.Context, db *gorm.DB, username, password string) (*models.User, bool, error) {
	var user models.User
	err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return nil, false, nil
	}
	return &user, true, nil
}

// GenerateTokenKey 生成 20 字节随机数的十六进制表示（40 个字符）。
func GenerateTokenKey() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// IssueToken 按 get-or-create 语义返回用户的 token：已存在则原样返回，
// 否则生成新 key 并保存。并发首次登录由 user_id 唯一索引兜底，
// 冲突时以库中已有记录为准。
func IssueToken(ctx context.Context, db *gorm.DB, userID uint) (*models.Token, error) {
	tx := db.WithContext(ctx)
	var tok models.Token
	err := tx.Where("user_id = ?", userID).First(&tok).Error
	if err == nil {
		return &tok, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	key, err := GenerateTokenKey()
	if err != nil {
		return nil, err
	}
	tok = models.Token{Key: key, UserID: userID}
	res := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&tok)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 1 {
		metrics.TokensIssuedTotal.Inc()
		return &tok, nil
	}
	var stored models.Token
	if err := tx.Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// ResolveToken 把 token key 解析为唯一的用户；未知 key 返回 gorm.ErrRecordNotFound。
func ResolveToken(ctx context.Context, db *gorm.DB, key string) (*models.User, error) {
	if key == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var tok models.Token
	if err := db.WithContext(ctx).Preload("User").Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: key}).First(&tok).Error; err != nil {
		return nil, err
	}
	// 用户已被删除而 token 残留时视为无效。
	if tok.User.ID == 0 || tok.User.ID != tok.UserID {
		return nil, gorm.ErrRecordNotFound
	}
	return &tok.User, nil
}

// ParseAuthorization 接受 "Token <key>" 与 "Bearer <key>" 两种写法。
func ParseAuthorization(header string) (string, bool) {
	scheme, key, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return "", false
	}
	switch strings.ToLower(scheme) {
	case "token", "bearer":
	default:
		return "", false
	}
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, " \t") {
		return "", false
	}
	return key, true
}

// TokenMiddleware 解析请求携带的 token 并把用户放入上下文。
// 缺失或无效的 token 只是让请求保持未认证，由访问策略决定是否放行。
func TokenMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := ParseAuthorization(c.GetHeader("Authorization"))
		if ok {
			user, err := ResolveToken(c.Request.Context(), db, key)
			switch {
			case err == nil:
				SetCurrentUser(c, user)
			case errors.Is(err, gorm.ErrRecordNotFound):
				log.Debug().Str("path", c.FullPath()).Msg("unknown token")
			default:
				log.Error().Err(err).Msg("resolve token")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
				return
			}
		}
		c.Next()
	}
}

func SetCurrentUser(c *gin.Context, u *models.User) {
	c.Set(userCtxKey, u)
}

// CurrentUser 返回当前请求的已认证用户。
func CurrentUser(c *gin.Context) (*models.User, bool) {
	if v, ok := c.Get(userCtxKey); ok {
		if u, ok2 := v.(*models.User); ok2 && u != nil {
			return u, true
		}
	}
	return nil, false
}

func GetUserID(c *gin.Context) uint {
	if u, ok := CurrentUser(c); ok {
		return u.ID
	}
	return 0
}
