package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/everafterhq/everafter/internal/wedding/domain"
	"github.com/everafterhq/everafter/pkg/db"
)

type repository struct {
	db *gorm.DB
}

func New(gdb *gorm.DB) domain.Repository {
	return &repository{db: gdb}
}

func (r *repository) Create(ctx context.Context, wedding *domain.Wedding) error {
	err := r.db.WithContext(ctx).Create(wedding).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrSlugTaken
	}
	return err
}

func (r *repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Wedding{}).
		Where("slug = ?", slug).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindBySlug(ctx context.Context, slug string) (*domain.Wedding, error) {
	var wedding domain.Wedding
	err := r.db.WithContext(ctx).First(&wedding, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wedding, nil
}
