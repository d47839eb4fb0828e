package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"newsdesk/internal/auth"
	"newsdesk/internal/metrics"
	"newsdesk/internal/models"

	"gorm.io/gorm"
)

// UserService 封装身份相关的业务逻辑：登录签发 token 以及后台账户管理。
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// LoginResult 登录成功后返回的数据。
type LoginResult struct {
	Token    string `json:"token"`
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

// Login 校验用户名密码并按 get-or-create 返回该用户唯一的 token。
// 缺失字段先于认证报告为 ValidationError；认证失败统一为 ErrInvalidCredentials。
func (s *UserService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	fields := map[string]string{}
	if username == "" {
		fields["username"] = "This field is required."
	}
	if password == "" {
		fields["password"] = "This field is required."
	}
	if len(fields) > 0 {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
		return nil, &ValidationError{Fields: fields}
	}
	user, ok, err := auth.Authenticate(ctx, s.db, username, password)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !ok {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCredentials
	}
	tok, err := auth.IssueToken(ctx, s.db, user.ID)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return &LoginResult{Token: tok.Key, UserID: user.ID, Username: user.Username}, nil
}

// CreateUser 创建后台账户，供运维命令使用。
func (s *UserService) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n == 0 || n > 150 {
		return nil, invalid("username", "Ensure this field has 1 to 150 characters.")
	}
	if len(password) < 4 || len(password) > 72 {
		return nil, invalid("password", "Ensure this field has 4 to 72 bytes.")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{Username: username, PasswordHash: hash}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// 并发创建同名用户时由唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return &user, nil
}

// DeleteUser 删除账户及其 token；其文章保留，作者置空。
func (s *UserService) DeleteUser(ctx context.Context, username string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("username = ?", username).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Model(&models.Post{}).Where("author_id = ?", user.ID).UpdateColumn("author_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Token{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
}

// TokenFor 为指定用户返回（必要时创建）token，不校验密码。
func (s *UserService) TokenFor(ctx context.Context, username string) (*LoginResult, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	tok, err := auth.IssueToken(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: tok.Key, UserID: user.ID, Username: user.Username}, nil
}
