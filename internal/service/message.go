package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"newsdesk/internal/models"

	"gorm.io/gorm"
)

// MessageService 封装短消息的增删改查。
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// MessageDTO 是对外输出的消息数据。
type MessageDTO struct {
	ID        uint      `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func toMessageDTO(m models.Message) MessageDTO {
	return MessageDTO{ID: m.ID, Content: m.Content, Timestamp: m.Timestamp}
}

func validateContent(content *string, required bool) error {
	if content == nil {
		if required {
			return invalid("content", "This field is required.")
		}
		return nil
	}
	if strings.TrimSpace(*content) == "" {
		return invalid("content", "This field may not be blank.")
	}
	return nil
}

// List 按时间戳倒序返回全部消息。
func (s *MessageService) List(ctx context.Context) ([]MessageDTO, error) {
	var msgs []models.Message
	if err := s.db.WithContext(ctx).Order("timestamp desc").Order("id desc").Find(&msgs).Error; err != nil {
		return nil, err
	}
	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageDTO(m))
	}
	return out, nil
}

func (s *MessageService) Get(ctx context.Context, id uint) (*MessageDTO, error) {
	var m models.Message
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	dto := toMessageDTO(m)
	return &dto, nil
}

func (s *MessageService) Create(ctx context.Context, content *string) (*MessageDTO, error) {
	if err := validateContent(content, true); err != nil {
		return nil, err
	}
	m := models.Message{Content: *content}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, err
	}
	dto := toMessageDTO(m)
	return &dto, nil
}

// Update 只允许修改 content，timestamp 创建后不可变。
func (s *MessageService) Update(ctx context.Context, id uint, content *string, partial bool) (*MessageDTO, error) {
	if err := validateContent(content, !partial); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if content != nil {
		if err := s.db.WithContext(ctx).Model(&models.Message{ID: id}).Update("content", *content).Error; err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

func (s *MessageService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Message{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
