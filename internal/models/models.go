package models

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"uniqueIndex;size:150;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Token 是登录后签发的持久 bearer 凭证，每个用户最多一个，不过期。
type Token struct {
	Key       string    `gorm:"primaryKey;size:40"`
	UserID    uint      `gorm:"uniqueIndex;not null"`
	User      User      `gorm:"constraint:OnDelete:CASCADE;"`
	CreatedAt time.Time
}

// Post 的作者是弱引用：用户被删除后 AuthorID 置空，文章本身保留。
type Post struct {
	ID            uint      `gorm:"primaryKey"`
	Headline      string    `gorm:"size:255;not null"`
	Content       string    `gorm:"type:text"`
	Tags          string    `gorm:"size:255"`
	AuthorID      *uint     `gorm:"index"`
	Author        *User     `gorm:"constraint:OnDelete:SET NULL;"`
	PublishedDate time.Time `gorm:"autoCreateTime;index"`
	UpdatedDate   time.Time `gorm:"autoUpdateTime"`
}

type Message struct {
	ID        uint      `gorm:"primaryKey"`
	Content   string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"autoCreateTime;index"`
}
