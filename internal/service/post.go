package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"newsdesk/internal/models"

	"gorm.io/gorm"
)

// PostService 封装文章的增删改查。
type PostService struct {
	db *gorm.DB
}

func NewPostService(db *gorm.DB) *PostService {
	return &PostService{db: db}
}

// PostDTO 是对外输出的文章数据。author 与 author_username 在作者被删除后为 null。
type PostDTO struct {
	ID             uint      `json:"id"`
	Headline       string    `json:"headline"`
	Content        string    `json:"content"`
	Tags           string    `json:"tags"`
	Author         *uint     `json:"author"`
	AuthorUsername *string   `json:"author_username"`
	PublishedDate  time.Time `json:"published_date"`
	UpdatedDate    time.Time `json:"updated_date"`
}

func toPostDTO(p models.Post) PostDTO {
	dto := PostDTO{
		ID:            p.ID,
		Headline:      p.Headline,
		Content:       p.Content,
		Tags:          p.Tags,
		Author:        p.AuthorID,
		PublishedDate: p.PublishedDate,
		UpdatedDate:   p.UpdatedDate,
	}
	if p.AuthorID != nil && p.Author != nil {
		name := p.Author.Username
		dto.AuthorUsername = &name
	}
	return dto
}

// PostInput 是调用方可写的字段；id、作者与时间戳不在其中。nil 表示未提供。
type PostInput struct {
	Headline *string
	Content  *string
	Tags     *string
}

func (in PostInput) validate(requireHeadline bool) error {
	fields := map[string]string{}
	if in.Headline == nil {
		if requireHeadline {
			fields["headline"] = "This field is required."
		}
	} else if h := strings.TrimSpace(*in.Headline); h == "" {
		fields["headline"] = "This field may not be blank."
	} else if utf8.RuneCountInString(h) > 255 {
		fields["headline"] = "Ensure this field has no more than 255 characters."
	}
	if in.Tags != nil && utf8.RuneCountInString(*in.Tags) > 255 {
		fields["tags"] = "Ensure this field has no more than 255 characters."
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// List 按发布时间倒序返回全部文章。
func (s *PostService) List(ctx context.Context) ([]PostDTO, error) {
	var posts []models.Post
	if err := s.db.WithContext(ctx).Preload("Author").Order("published_date desc").Order("id desc").Find(&posts).Error; err != nil {
		return nil, err
	}
	out := make([]PostDTO, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostDTO(p))
	}
	return out, nil
}

func (s *PostService) Get(ctx context.Context, id uint) (*PostDTO, error) {
	p, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	dto := toPostDTO(*p)
	return &dto, nil
}

func (s *PostService) load(tx *gorm.DB, id uint) (*models.Post, error) {
	var p models.Post
	if err := tx.Preload("Author").First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create 以 authorID 作为作者创建文章，调用方提交的作者信息一律忽略。
func (s *PostService) Create(ctx context.Context, authorID uint, in PostInput) (*PostDTO, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}
	p := models.Post{Headline: strings.TrimSpace(*in.Headline), AuthorID: &authorID}
	if in.Content != nil {
		p.Content = *in.Content
	}
	if in.Tags != nil {
		p.Tags = *in.Tags
	}
	tx := s.db.WithContext(ctx)
	if err := tx.Omit("Author").Create(&p).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, p.ID)
}

// Update 修改可写字段并刷新 updated_date；partial 为 false 时 headline 必填。
func (s *PostService) Update(ctx context.Context, id uint, in PostInput, partial bool) (*PostDTO, error) {
	if err := in.validate(!partial); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.load(tx, id)
		if err != nil {
			return err
		}
		changes := map[string]any{"updated_date": tx.NowFunc()}
		if in.Headline != nil {
			changes["headline"] = strings.TrimSpace(*in.Headline)
		}
		if in.Content != nil {
			changes["content"] = *in.Content
		}
		if in.Tags != nil {
			changes["tags"] = *in.Tags
		}
		return tx.Model(&models.Post{ID: p.ID}).Updates(changes).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *PostService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
