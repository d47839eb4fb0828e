package server

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"newsdesk/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const invalidCredentials = "Invalid credentials"

var registerTagNames sync.Once

// useJSONFieldNames 让校验错误使用 json 字段名而不是 Go 字段名。
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindJSON 解析请求体；空请求体视为空对象，交由后续校验报告缺失字段。
func bindJSON(c *gin.Context, obj any) error {
	err := c.ShouldBindJSON(obj)
	if errors.Is(err, io.EOF) {
		return binding.Validator.ValidateStruct(obj)
	}
	return err
}

// fieldErrors 把绑定阶段的错误转换为 ValidationError；JSON 语法错误等归为 non_field_errors。
func fieldErrors(err error) *service.ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &service.ValidationError{Fields: map[string]string{"non_field_errors": "Malformed request body."}}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "This field is required."
		case "max":
			fields[fe.Field()] = "Ensure this field has no more than " + fe.Param() + " characters."
		default:
			fields[fe.Field()] = "Invalid value."
		}
	}
	return &service.ValidationError{Fields: fields}
}

func writeValidation(c *gin.Context, detail string, verr *service.ValidationError) {
	c.JSON(http.StatusBadRequest, gin.H{"detail": detail, "errors": verr.Fields})
}

// writeError 把业务错误映射为状态码；未知错误记录日志并返回 500。
func writeError(c *gin.Context, err error, op string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidation(c, "Invalid input.", verr)
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	default:
		log.Error().Err(err).Str("op", op).Str("request_id", c.GetString("request_id")).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error."})
	}
}

// AuthHandler 处理登录：凭证校验后签发（或返回已有的）token。
type AuthHandler struct {
	users *service.UserService
}

func NewAuthHandler(users *service.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// Login 用户名不存在与密码错误返回同样的 400 响应，避免泄露用户名是否存在。
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		writeValidation(c, invalidCredentials, fieldErrors(err))
		return
	}
	result, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			writeValidation(c, invalidCredentials, verr)
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"detail": invalidCredentials})
		default:
			log.Error().Err(err).Str("username", req.Username).Msg("login")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error."})
		}
		return
	}
	c.JSON(http.StatusOK, result)
}
