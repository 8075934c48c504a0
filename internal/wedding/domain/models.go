package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Wedding is one customer's provisioned tenant. The slug is globally
// unique and permanent; OwnerID never changes after creation.
type Wedding struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	OwnerID    string            `gorm:"type:text;not null;index"`
	Slug       string            `gorm:"type:text;not null;uniqueIndex"`
	GuestCode  string            `gorm:"type:text;not null"`
	AdminToken string            `gorm:"type:text;not null"`
	Config     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Wedding) TableName() string { return "weddings" }

type Repository interface {
	Create(ctx context.Context, wedding *Wedding) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	FindBySlug(ctx context.Context, slug string) (*Wedding, error)
}

var (
	ErrNotFound  = errors.New("wedding not found")
	ErrSlugTaken = errors.New("wedding slug already taken")
)
