package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"newsdesk/internal/policy"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                string
	Env                 string
	DatabaseDriver      string
	DatabaseDSN         string
	PostAccessPolicy    string
	MessageAccessPolicy string
	RateLimitRPS        int
	RateLimitBurst      int
	CORSAllowedOrigins  []string
}

const defaultDSN = "host=localhost user=postgres password=postgres dbname=newsdesk port=5432 sslmode=disable TimeZone=UTC"

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// getenvInt 读取正整数，非法或非正值回退到默认值。
func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// LoadDotenv 从当前目录向上查找第一个 .env 并加载，已存在的环境变量不会被覆盖。
func LoadDotenv() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for i := 0; i < 3; i++ {
		p := filepath.Join(dir, ".env")
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				return p
			}
			return ""
		}
		dir = filepath.Dir(dir)
	}
	return ""
}

func Load() Config {
	return Config{
		Port:                getenv("APP_PORT", "8080"),
		Env:                 getenv("APP_ENV", "dev"),
		DatabaseDriver:      strings.ToLower(getenv("DATABASE_DRIVER", "postgres")),
		DatabaseDSN:         getenv("DATABASE_DSN", defaultDSN),
		PostAccessPolicy:    getenv("POST_ACCESS_POLICY", policy.PublicRead.String()),
		MessageAccessPolicy: getenv("MESSAGE_ACCESS_POLICY", policy.AuthenticatedOnly.String()),
		RateLimitRPS:        getenvInt("RATE_LIMIT_RPS", 20),
		RateLimitBurst:      getenvInt("RATE_LIMIT_BURST", 40),
		CORSAllowedOrigins:  splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Policies 返回两个资源各自声明的访问策略。
func (c Config) Policies() (post, message policy.Variant, err error) {
	post, err = policy.ParseVariant(c.PostAccessPolicy)
	if err != nil {
		return 0, 0, fmt.Errorf("POST_ACCESS_POLICY: %w", err)
	}
	message, err = policy.ParseVariant(c.MessageAccessPolicy)
	if err != nil {
		return 0, 0, fmt.Errorf("MESSAGE_ACCESS_POLICY: %w", err)
	}
	return post, message, nil
}

// Validate 在启动前检查配置，避免带着无效策略对外服务。
func Validate(c Config) error {
	if c.Port == "" {
		return errors.New("APP_PORT is empty")
	}
	if c.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is empty")
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.Env != "dev" && c.DatabaseDSN == defaultDSN {
		return errors.New("DATABASE_DSN must be set outside dev")
	}
	_, _, err := c.Policies()
	return err
}
