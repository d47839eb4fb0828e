// Package dbtest 为测试提供基于临时 SQLite 文件的数据库和可控时钟。
package dbtest

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"newsdesk/internal/db"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Clock 每次调用 Now 前进一个固定步长，保证写入时间严格递增。
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func NewClock(start time.Time, step time.Duration) *Clock {
	return &Clock{now: start, step: step}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Open 打开一个已迁移的测试库，测试结束时关闭。
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	clock := NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
	return OpenWithClock(t, clock.Now)
}

func OpenWithClock(t testing.TB, now func() time.Time) *gorm.DB {
	t.Helper()
	dsn := db.SQLiteDSN(filepath.Join(t.TempDir(), "newsdesk.db"))
	gdb, err := db.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: now})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// SQLite 单写者；测试中串行化连接，避免锁升级时的 SQLITE_BUSY。
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}
