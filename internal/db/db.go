package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"newsdesk/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect 按驱动建立连接；Postgres 带有简单的重试来等待容器就绪。
func Connect(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "sqlite":
		return Open(sqlite.Open(SQLiteDSN(dsn)), nil)
	case "postgres", "":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	var gdb *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		gdb, err = Open(postgres.Open(dsn), nil)
		if err == nil {
			return gdb, nil
		}
		time.Sleep(time.Duration(500+i*200) * time.Millisecond)
	}
	return nil, err
}

// SQLiteDSN 为 SQLite 连接串补上外键与忙等待参数。SQLite 默认不执行外键约束，
// 不开启时 ON DELETE CASCADE / SET NULL 都不会生效。
func SQLiteDSN(dsn string) string {
	var params []string
	if !strings.Contains(dsn, "_foreign_keys=") && !strings.Contains(dsn, "_fk=") {
		params = append(params, "_foreign_keys=1")
	}
	if !strings.Contains(dsn, "_timeout=") {
		params = append(params, "_busy_timeout=5000")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// Open 打开连接并设置连接池；cfg 为 nil 时使用静默日志。
// 驱动错误统一翻译为 gorm 的哨兵错误（如 gorm.ErrDuplicatedKey）。
func Open(dialector gorm.Dialector, cfg *gorm.Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	cfg.TranslateError = true
	if cfg.Logger == nil {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return gdb, nil
}

// Migrate 自动迁移全部表结构，顺序满足外键依赖。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&models.User{}, &models.Token{}, &models.Post{}, &models.Message{})
}

// Ping 用于健康检查。
func Ping(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
